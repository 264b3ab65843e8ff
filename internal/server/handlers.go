package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xaenox/insight-bot/internal/autopost"
	"github.com/xaenox/insight-bot/internal/dispatch"
	"github.com/xaenox/insight-bot/internal/generator"
	"github.com/xaenox/insight-bot/internal/models"
	"github.com/xaenox/insight-bot/internal/storage"
)

type generateRequest struct {
	Topic        string `json:"topic"`
	TargetFormat string `json:"targetFormat"`
	Tone         string `json:"tone"`
	VisualStyle  string `json:"visualStyle"`
	Model        string `json:"model"`
	APIKey       string `json:"apiKey"`
}

type generateResponse struct {
	HistoryID string `json:"historyId,omitempty"`
	*models.GenerationResult
}

type dispatchRequest struct {
	HistoryID   string `json:"historyId" binding:"required"`
	BotToken    string `json:"botToken"`
	ChatID      string `json:"chatId"`
	VisualStyle string `json:"visualStyle"`
}

type deliveryStatus struct {
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

type dispatchResponse struct {
	Content     deliveryStatus `json:"content"`
	ImagePrompt deliveryStatus `json:"imagePrompt"`
}

type autopostRequest struct {
	Session string `json:"session"`
	Model   string `json:"model"`
}

type autopostResponse struct {
	Logs    []string `json:"logs"`
	Session string   `json:"session,omitempty"`
	Topic   string   `json:"topic,omitempty"`
	Content string   `json:"content,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func (s *Server) handleGenerate(c *gin.Context) {
	var body generateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	req, err := body.toRequest()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	settings := s.deps.Settings
	if body.APIKey != "" {
		if req.Model.IsOpenAI() {
			settings.OpenAIKey = body.APIKey
		} else {
			settings.APIKey = body.APIKey
		}
	}

	ctx := c.Request.Context()
	result, err := s.deps.Generator.GeneratePost(ctx, settings, req, req.Topic, nil)
	if err != nil {
		s.logger.Error("Failed to generate post",
			zap.Error(err),
			zap.String("topic", req.Topic),
			zap.String("model", string(req.Model)))
		s.respondError(c, err)
		return
	}

	item := &models.HistoryItem{ChatID: webChatID, Topic: req.Topic, Result: *result}
	if err := s.deps.Storage.SaveHistory(ctx, item); err != nil {
		s.logger.Error("Failed to save history", zap.Error(err))
		item.ID = ""
	}

	c.JSON(http.StatusOK, generateResponse{HistoryID: item.ID, GenerationResult: result})
}

func (r generateRequest) toRequest() (models.GenerationRequest, error) {
	req := models.GenerationRequest{
		Topic:        strings.TrimSpace(r.Topic),
		TargetFormat: models.FormatTelegram,
		Tone:         models.ToneProfessional,
		VisualStyle:  models.StyleEditorial,
	}
	if req.Topic == "" {
		return req, generator.ErrEmptyTopic
	}

	var err error
	if r.TargetFormat != "" {
		if req.TargetFormat, err = models.ParseTargetFormat(r.TargetFormat); err != nil {
			return req, err
		}
	}
	if r.Tone != "" {
		if req.Tone, err = models.ParseTone(r.Tone); err != nil {
			return req, err
		}
	}
	if r.VisualStyle != "" {
		if req.VisualStyle, err = models.ParseVisualStyle(r.VisualStyle); err != nil {
			return req, err
		}
	}
	if m, ok := models.ParseModelChoice(r.Model); ok {
		req.Model = m
	}
	return req, nil
}

func (s *Server) handleTrending(c *gin.Context) {
	topics := s.deps.Generator.FetchTrendingTopics(c.Request.Context(), s.deps.Settings, s.deps.Generator.DateLabel())
	c.JSON(http.StatusOK, gin.H{"topics": topics})
}

func (s *Server) handleListHistory(c *gin.Context) {
	limit := storage.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	items, err := s.deps.Storage.ListHistory(c.Request.Context(), webChatID, limit)
	if err != nil {
		s.logger.Error("Failed to list history", zap.Error(err))
		s.respondError(c, err)
		return
	}
	if items == nil {
		items = []*models.HistoryItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) handleDeleteHistory(c *gin.Context) {
	if err := s.deps.Storage.DeleteHistory(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleClearHistory(c *gin.Context) {
	if err := s.deps.Storage.ClearHistory(c.Request.Context(), webChatID); err != nil {
		s.logger.Error("Failed to clear history", zap.Error(err))
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handlePreview(c *gin.Context) {
	item, err := s.deps.Storage.GetHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	page, err := RenderPreview(item.Topic, item.Result.Content)
	if err != nil {
		s.logger.Error("Failed to render preview", zap.Error(err), zap.String("id", item.ID))
		s.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (s *Server) handleDispatch(c *gin.Context) {
	var body dispatchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	style := models.StyleEditorial
	if body.VisualStyle != "" {
		var err error
		if style, err = models.ParseVisualStyle(body.VisualStyle); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	ctx := c.Request.Context()
	item, err := s.deps.Storage.GetHistory(ctx, body.HistoryID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	target := s.deps.Target
	if body.BotToken != "" {
		target.BotToken = body.BotToken
	}
	if body.ChatID != "" {
		target.ChatID = body.ChatID
	}
	if err := target.Validate(); err != nil {
		s.respondError(c, err)
		return
	}

	report := dispatch.SendResult(ctx, s.deps.Dispatcher, target, &item.Result, style)
	resp := dispatchResponse{
		Content:     deliveryStatusOf(report.Content, true),
		ImagePrompt: deliveryStatusOf(report.ImagePrompt, report.ImagePromptTried),
	}
	if !report.OK() {
		s.logger.Warn("Dispatch incomplete",
			zap.Error(report.Err()),
			zap.String("history_id", item.ID))
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func deliveryStatusOf(err error, tried bool) deliveryStatus {
	if !tried {
		return deliveryStatus{Skipped: true}
	}
	if err == nil {
		return deliveryStatus{OK: true}
	}
	return deliveryStatus{Error: err.Error(), Kind: dispatchKind(err)}
}

func dispatchKind(err error) string {
	var delivery *dispatch.DeliveryError
	var transport *dispatch.TransportError
	switch {
	case errors.Is(err, dispatch.ErrConfigIncomplete):
		return "config_incomplete"
	case errors.As(err, &delivery):
		return "delivery"
	case errors.As(err, &transport):
		return "transport"
	}
	return "unknown"
}

func (s *Server) handleAutoPost(c *gin.Context) {
	if s.deps.AutoPost == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "autopost is not configured"})
		return
	}

	var body autopostRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	var (
		mu   sync.Mutex
		logs = []string{}
	)
	opts := autopost.Options{
		ForceSession:  body.Session,
		FallbackTopic: true,
		Log: func(line string) {
			mu.Lock()
			logs = append(logs, line)
			mu.Unlock()
		},
	}
	if m, ok := models.ParseModelChoice(body.Model); ok {
		opts.Model = m
	}

	result, err := s.deps.AutoPost.Run(c.Request.Context(), opts)

	mu.Lock()
	resp := autopostResponse{Logs: logs}
	mu.Unlock()
	if result != nil {
		resp.Session = string(result.Session)
		resp.Topic = result.Topic
		if result.Post != nil {
			resp.Content = result.Post.Content
		}
	}
	if err != nil {
		s.logger.Error("Manual autopost failed", zap.Error(err))
		resp.Error = err.Error()
		c.JSON(statusOf(err), resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func statusOf(err error) int {
	var delivery *dispatch.DeliveryError
	var transport *dispatch.TransportError
	switch {
	case errors.Is(err, generator.ErrMissingCredential):
		return http.StatusUnauthorized
	case errors.Is(err, generator.ErrEmptyTopic), errors.Is(err, dispatch.ErrConfigIncomplete):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, generator.ErrGenerationFailed), errors.As(err, &delivery), errors.As(err, &transport):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
