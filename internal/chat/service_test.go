package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esthetix/clinic-portal/internal/treatments"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
}

func (f *fakeDynamo) key(attrs map[string]types.AttributeValue) string {
	pk, _ := attrs["pk"].(*types.AttributeValueMemberS)
	sk, _ := attrs["sk"].(*types.AttributeValueMemberS)
	return pk.Value + "|" + sk.Value
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[f.key(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.items[f.key(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, _ *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	var out []map[string]types.AttributeValue
	for _, item := range f.items {
		out = append(out, item)
	}
	return &dynamodb.QueryOutput{Items: out}, nil
}

type fakeLLM struct {
	reply    string
	err      error
	lastSys  string
	lastMsgs []Message
}

func (f *fakeLLM) Complete(_ context.Context, system string, messages []Message) (string, error) {
	f.lastSys = system
	f.lastMsgs = messages
	return f.reply, f.err
}

func newTestService(t *testing.T, llm LLMClient, ratePerMinute int) *Service {
	t.Helper()
	dyn := &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
	store := treatments.NewStore(dyn, "schedule-test", logging.Default())
	catalog := treatments.NewCatalog(store, nil, logging.Default())
	require.NoError(t, store.Put(context.Background(), treatments.Treatment{
		PageName: "botox",
		Name:     "Botox",
		Tagline:  "Smooth dynamic wrinkles",
		Keywords: []string{"wrinkles"},
	}))
	return NewService(catalog, llm, ratePerMinute, nil, logging.Default())
}

func TestAskFAQBypassesLLM(t *testing.T) {
	llm := &fakeLLM{reply: "llm reply"}
	svc := newTestService(t, llm, 60)

	reply, err := svc.Ask(context.Background(), []Message{{Role: RoleUser, Content: "how do I book an appointment?"}})
	require.NoError(t, err)
	assert.Contains(t, reply, "booking page")
	assert.Nil(t, llm.lastMsgs, "FAQ answers never reach the LLM")
}

func TestAskGroundsLLMInCatalog(t *testing.T) {
	llm := &fakeLLM{reply: "Botox smooths wrinkles."}
	svc := newTestService(t, llm, 60)

	conversation := []Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi, how can I help?"},
		{Role: RoleUser, Content: "is botox right for my wrinkles?"},
	}
	reply, err := svc.Ask(context.Background(), conversation)
	require.NoError(t, err)
	assert.Equal(t, "Botox smooths wrinkles.", reply)
	assert.Contains(t, llm.lastSys, "Botox - Smooth dynamic wrinkles")
	assert.Len(t, llm.lastMsgs, 3)
}

func TestAskTrimsHistory(t *testing.T) {
	llm := &fakeLLM{reply: "ok"}
	svc := newTestService(t, llm, 60)

	conversation := make([]Message, 0, 7)
	for i := 0; i < 6; i++ {
		conversation = append(conversation, Message{Role: RoleAssistant, Content: "turn"})
	}
	conversation = append(conversation, Message{Role: RoleUser, Content: "tell me about botox injections"})

	_, err := svc.Ask(context.Background(), conversation)
	require.NoError(t, err)
	assert.Len(t, llm.lastMsgs, historyWindow)
}

func TestAskFallbackOnLLMError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("quota exceeded")}
	svc := newTestService(t, llm, 60)

	reply, err := svc.Ask(context.Background(), []Message{{Role: RoleUser, Content: "is botox right for my wrinkles?"}})
	require.NoError(t, err)
	assert.Contains(t, reply, "trouble answering")
	assert.Contains(t, reply, "Botox", "fallback mentions the best-matching treatment")
}

func TestAskWithoutLLM(t *testing.T) {
	svc := newTestService(t, nil, 60)
	reply, err := svc.Ask(context.Background(), []Message{{Role: RoleUser, Content: "random question"}})
	require.NoError(t, err)
	assert.Contains(t, reply, "trouble answering")
}

func TestAskRateLimit(t *testing.T) {
	svc := newTestService(t, &fakeLLM{reply: "ok"}, 2)
	current := time.Now()
	svc.limiter.now = func() time.Time { return current }
	svc.limiter.last = current
	svc.limiter.tokens = 2

	msg := []Message{{Role: RoleUser, Content: "random question"}}
	for i := 0; i < 2; i++ {
		_, err := svc.Ask(context.Background(), msg)
		require.NoError(t, err)
	}
	_, err := svc.Ask(context.Background(), msg)
	assert.ErrorIs(t, err, ErrRateLimited)

	// Tokens refill with time.
	current = current.Add(time.Minute)
	_, err = svc.Ask(context.Background(), msg)
	assert.NoError(t, err)
}

func TestAskEmptyMessage(t *testing.T) {
	svc := newTestService(t, nil, 60)
	_, err := svc.Ask(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.Ask(context.Background(), []Message{{Role: RoleAssistant, Content: "hi"}})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}
