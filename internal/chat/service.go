package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/esthetix/clinic-portal/internal/observability/metrics"
	"github.com/esthetix/clinic-portal/internal/treatments"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

// ErrRateLimited indicates the assistant is receiving more questions than
// its per-minute limit allows.
var ErrRateLimited = errors.New("chat: rate limited")

// ErrEmptyMessage indicates the request carried no user message.
var ErrEmptyMessage = errors.New("chat: empty message")

// historyWindow caps how many prior turns are forwarded to the LLM.
const historyWindow = 4

const systemPrompt = `You are the virtual assistant for Esthetix Clinic, a medical and cosmetic clinic.
Answer questions about the clinic's treatments using only the knowledge provided below.
Be warm and concise. When a question needs a professional opinion, recommend booking a consultation.
Appointments are one hour, Monday through Saturday, 9:00 to 17:00, booked through the website.
If you don't know something, say so and suggest contacting the clinic.`

// tokenBucket is a minimal per-minute rate limiter.
type tokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	perSec   float64
	last     time.Time
	now      func() time.Time
}

func newTokenBucket(perMinute int, now func() time.Time) *tokenBucket {
	if perMinute <= 0 {
		perMinute = 60
	}
	if now == nil {
		now = time.Now
	}
	capacity := float64(perMinute)
	return &tokenBucket{
		tokens:   capacity,
		capacity: capacity,
		perSec:   capacity / 60,
		last:     now(),
		now:      now,
	}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.tokens += now.Sub(b.last).Seconds() * b.perSec
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Service answers patient questions: FAQ cache first, then the LLM grounded
// in the treatment catalog, with a canned fallback when the LLM is down.
type Service struct {
	catalog *treatments.Catalog
	llm     LLMClient
	limiter *tokenBucket
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

// NewService wires the chat service. llm and metrics may be nil; with a nil
// llm every non-FAQ question gets the fallback reply.
func NewService(catalog *treatments.Catalog, llm LLMClient, ratePerMinute int, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if catalog == nil {
		panic("chat: catalog cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		catalog: catalog,
		llm:     llm,
		limiter: newTokenBucket(ratePerMinute, nil),
		metrics: m,
		logger:  logger,
	}
}

// Ask answers the conversation's last user message.
func (s *Service) Ask(ctx context.Context, conversation []Message) (string, error) {
	message := lastUserMessage(conversation)
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	if reply, ok := CheckFAQCache(message); ok {
		s.metrics.ObserveChat("faq")
		return reply, nil
	}

	if !s.limiter.allow() {
		s.metrics.ObserveChat("rate_limited")
		return "", ErrRateLimited
	}

	catalog, err := s.catalog.List(ctx)
	if err != nil {
		s.logger.Error("failed to load treatment catalog for chat", "error", err)
		catalog = nil
	}
	relevant := RelevantTreatments(message, catalog)

	if s.llm != nil {
		system := systemPrompt
		if knowledge := BuildKnowledgeContext(relevant); knowledge != "" {
			system += "\n\n" + knowledge
		}
		reply, err := s.llm.Complete(ctx, system, trimHistory(conversation))
		if err == nil && reply != "" {
			s.metrics.ObserveChat("answered")
			return reply, nil
		}
		if err != nil {
			s.logger.Error("llm completion failed, using fallback", "error", err)
		}
	}

	s.metrics.ObserveChat("fallback")
	return s.fallback(relevant), nil
}

// trimHistory keeps the last few turns so the prompt stays small.
func trimHistory(conversation []Message) []Message {
	if len(conversation) <= historyWindow {
		return conversation
	}
	return conversation[len(conversation)-historyWindow:]
}

func lastUserMessage(conversation []Message) string {
	for i := len(conversation) - 1; i >= 0; i-- {
		if conversation[i].Role == RoleUser {
			return conversation[i].Content
		}
	}
	return ""
}

// fallback is the reply used when the LLM is unavailable, enriched with the
// best-matching treatment when there is one.
func (s *Service) fallback(relevant []treatments.Treatment) string {
	base := "I'm having trouble answering right now. You can browse our treatments on the website or book a consultation and our team will answer all your questions in person."
	if len(relevant) == 0 {
		return base
	}
	top := relevant[0]
	return fmt.Sprintf("%s You might be interested in %s: %s.", base, top.Name, strings.TrimSuffix(top.Tagline, "."))
}
