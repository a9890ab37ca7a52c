package app

import (
	"context"
	"io"
	"iter"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"github.com/noeltrans/dispatch_services/internal/relay_service/adapters/chat"
	"github.com/noeltrans/dispatch_services/internal/relay_service/adapters/smsprovider"
	"github.com/noeltrans/dispatch_services/internal/relay_service/domain"
)

// --- Mocks ---

type MockCorrelationRepository struct {
	mock.Mock
}

func (m *MockCorrelationRepository) FindByThread(ctx context.Context, threadID string) (*domain.CorrelationRecord, error) {
	args := m.Called(ctx, threadID)
	if fn, ok := args.Get(0).(func(context.Context, string) *domain.CorrelationRecord); ok {
		return fn(ctx, threadID), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CorrelationRecord), args.Error(1)
}

func (m *MockCorrelationRepository) FindByPhone(ctx context.Context, phoneNumber string) (*domain.CorrelationRecord, error) {
	args := m.Called(ctx, phoneNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CorrelationRecord), args.Error(1)
}

func (m *MockCorrelationRepository) Create(ctx context.Context, phoneNumber, threadID string) (*domain.CorrelationRecord, error) {
	args := m.Called(ctx, phoneNumber, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CorrelationRecord), args.Error(1)
}

type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) FindByUserID(ctx context.Context, userID string) (*domain.UserCredential, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserCredential), args.Error(1)
}

func (m *MockCredentialRepository) Upsert(ctx context.Context, cred *domain.UserCredential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}

type MockChatClient struct {
	mock.Mock
}

func (m *MockChatClient) PostMessage(ctx context.Context, msg chat.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *MockChatClient) PostMessageAs(ctx context.Context, token string, msg chat.Message) (string, error) {
	args := m.Called(ctx, token, msg)
	return args.String(0), args.Error(1)
}

func (m *MockChatClient) OpenDialog(ctx context.Context, token, triggerID string, dialog chat.Dialog) error {
	args := m.Called(ctx, token, triggerID, dialog)
	return args.Error(0)
}

func (m *MockChatClient) ExchangeCode(ctx context.Context, clientID, clientSecret, code, redirectURI string) (*chat.OAuthAccess, error) {
	args := m.Called(ctx, clientID, clientSecret, code, redirectURI)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.OAuthAccess), args.Error(1)
}

type MockSMSAdapter struct {
	mock.Mock
}

func (m *MockSMSAdapter) Send(ctx context.Context, req smsprovider.SendRequest) (*smsprovider.SendResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*smsprovider.SendResponse), args.Error(1)
}

func (m *MockSMSAdapter) GetName() string { return "mock" }

type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func (m *MockBroker) Close() {}

// fakeDirectory serves lookups from maps; searchErr is yielded after the matches when set.
type fakeDirectory struct {
	byPhone   map[string]domain.DriverRecord
	byName    map[string][]domain.DriverRecord
	lookupErr error
	searchErr error
}

func (f *fakeDirectory) LookupByPhone(_ context.Context, carrierPhone string) (*domain.DriverRecord, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	rec, ok := f.byPhone[carrierPhone]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeDirectory) SearchByFirstName(_ context.Context, name string) iter.Seq2[domain.DriverRecord, error] {
	return func(yield func(domain.DriverRecord, error) bool) {
		for _, rec := range f.byName[name] {
			if !yield(rec, nil) {
				return
			}
		}
		if f.searchErr != nil {
			yield(domain.DriverRecord{}, f.searchErr)
		}
	}
}

type testHarness struct {
	svc          *RelayService
	correlations *MockCorrelationRepository
	credentials  *MockCredentialRepository
	chat         *MockChatClient
	sms          *MockSMSAdapter
	broker       *MockBroker
	directory    *fakeDirectory
	states       *DialogStateCodec
}

func newHarness() *testHarness {
	h := &testHarness{
		correlations: new(MockCorrelationRepository),
		credentials:  new(MockCredentialRepository),
		chat:         new(MockChatClient),
		sms:          new(MockSMSAdapter),
		broker:       new(MockBroker),
		directory:    &fakeDirectory{byPhone: map[string]domain.DriverRecord{}, byName: map[string][]domain.DriverRecord{}},
		states:       NewDialogStateCodec("test-secret", 0),
	}
	h.broker.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	h.svc = NewRelayService(Deps{
		Correlations: h.correlations,
		Credentials:  h.credentials,
		Directory:    h.directory,
		Chat:         h.chat,
		SMS:          h.sms,
		Broker:       h.broker,
		States:       h.states,
	}, Settings{Channel: "#dispatch", ClientID: "cid", ClientSecret: "csecret", TeamID: "T1", RedirectURI: "https://relay.example.com/auth"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return h
}

func (h *testHarness) assertExpectations(t mock.TestingT) {
	h.correlations.AssertExpectations(t)
	h.credentials.AssertExpectations(t)
	h.chat.AssertExpectations(t)
	h.sms.AssertExpectations(t)
}

func newThreadReplyEvent(user, text, ts, threadTS string) chat.MessageEvent {
	return chat.MessageEvent{Type: "message", User: user, Text: text, TimeStamp: ts, ThreadTimeStamp: threadTS, Channel: "C1"}
}

func queued() *smsprovider.SendResponse {
	return &smsprovider.SendResponse{ProviderMessageID: "SM1", Status: "queued", ProviderName: "mock"}
}
