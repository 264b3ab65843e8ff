package models

import (
	"fmt"
	"strings"
)

// TargetFormat is the output channel a post is shaped for.
type TargetFormat string

const (
	FormatBlog     TargetFormat = "blog"
	FormatLinkedIn TargetFormat = "linkedin"
	FormatTwitter  TargetFormat = "twitter"
	FormatFacebook TargetFormat = "facebook"
	FormatTelegram TargetFormat = "telegram"
)

var formatLabels = map[TargetFormat]string{
	FormatBlog:     "方格子 (Vocus)",
	FormatLinkedIn: "LinkedIn",
	FormatTwitter:  "Twitter/X",
	FormatFacebook: "Facebook",
	FormatTelegram: "Telegram (快訊)",
}

// TargetFormats lists formats in display order.
var TargetFormats = []TargetFormat{FormatBlog, FormatLinkedIn, FormatTwitter, FormatFacebook, FormatTelegram}

func (f TargetFormat) Label() string {
	if l, ok := formatLabels[f]; ok {
		return l
	}
	return string(f)
}

func (f TargetFormat) Valid() bool {
	_, ok := formatLabels[f]
	return ok
}

// Tone is the editorial stance of a post.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneBullish      Tone = "bullish"
	ToneBearish      Tone = "bearish"
	ToneEducational  Tone = "educational"
)

var toneLabels = map[Tone]string{
	ToneProfessional: "專業分析 (Professional)",
	ToneBullish:      "看多/樂觀 (Bullish)",
	ToneBearish:      "看空/謹慎 (Bearish)",
	ToneEducational:  "科普教學 (Educational)",
}

var Tones = []Tone{ToneProfessional, ToneBullish, ToneBearish, ToneEducational}

func (t Tone) Label() string {
	if l, ok := toneLabels[t]; ok {
		return l
	}
	return string(t)
}

func (t Tone) Valid() bool {
	_, ok := toneLabels[t]
	return ok
}

// VisualStyle is the art direction requested for the image prompt.
type VisualStyle string

const (
	StyleEditorial      VisualStyle = "editorial"
	StyleCyberpunk      VisualStyle = "cyberpunk"
	StyleMinimalist     VisualStyle = "minimalist"
	StyleIsometric      VisualStyle = "isometric"
	StyleAbstract       VisualStyle = "abstract"
	StylePhotorealistic VisualStyle = "photorealistic"
)

var styleLabels = map[VisualStyle]string{
	StyleEditorial:      "新聞插畫 (Editorial)",
	StyleCyberpunk:      "賽博龐克 (Cyberpunk)",
	StyleMinimalist:     "極簡主義 (Minimalist)",
	StyleIsometric:      "3D 等距 (3D Isometric)",
	StyleAbstract:       "抽象數據 (Abstract Data)",
	StylePhotorealistic: "寫實攝影 (Photorealistic)",
}

var VisualStyles = []VisualStyle{
	StyleEditorial, StyleCyberpunk, StyleMinimalist, StyleIsometric, StyleAbstract, StylePhotorealistic,
}

func (s VisualStyle) Label() string {
	if l, ok := styleLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s VisualStyle) Valid() bool {
	_, ok := styleLabels[s]
	return ok
}

// Session is the report slot an unattended run targets.
type Session string

const (
	SessionMorning Session = "morning"
	SessionEvening Session = "evening"
)

func (s Session) Label() string {
	if s == SessionMorning {
		return "🌅 晨間全球總結"
	}
	return "🌇 亞洲/歐洲盤後分析"
}

// ParseTargetFormat accepts either the identifier or the display label.
func ParseTargetFormat(s string) (TargetFormat, error) {
	for _, f := range TargetFormats {
		if matchOption(s, string(f), f.Label()) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown target format %q", s)
}

func ParseTone(s string) (Tone, error) {
	for _, t := range Tones {
		if matchOption(s, string(t), t.Label()) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tone %q", s)
}

func ParseVisualStyle(s string) (VisualStyle, error) {
	for _, v := range VisualStyles {
		if matchOption(s, string(v), v.Label()) {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown visual style %q", s)
}

func matchOption(input, id, label string) bool {
	input = strings.TrimSpace(input)
	return strings.EqualFold(input, id) || input == label
}
