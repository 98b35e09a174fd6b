package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/internal/resilience"
	"github.com/jooke-shop/sourcing-cli/pkg/kakao"
)

type mockKakao struct {
	mock.Mock
}

func (m *mockKakao) Send(ctx context.Context, msg kakao.Message) (*kakao.SendResponse, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*kakao.SendResponse), args.Error(1)
}

func TestRender(t *testing.T) {
	msg, err := Render(model.MessageOrderConfirmed, map[string]any{"order_id": "A-1001", "product_name": "메이플 시럽"})
	require.NoError(t, err)
	assert.Equal(t, "주문이 확인되었습니다. 주문번호: A-1001\n상품: 메이플 시럽\n예상 배송: 7-15일", msg)

	msg, err = Render(model.MessageShipped, map[string]any{"tracking_number": "CP123456789CA"})
	require.NoError(t, err)
	assert.Contains(t, msg, "추적번호: CP123456789CA")

	msg, err = Render(model.MessageDelivered, map[string]any{"order_id": "A-1001"})
	require.NoError(t, err)
	assert.Contains(t, msg, "5% 할인")
}

func TestRender_Errors(t *testing.T) {
	var ce *resilience.ConfigError

	_, err := Render("refund_issued", map[string]any{"order_id": "1"})
	require.ErrorAs(t, err, &ce)

	_, err = Render(model.MessageShipped, nil)
	require.ErrorAs(t, err, &ce)

	_, err = Render(model.MessageOrderConfirmed, map[string]any{"order_id": "A-1"})
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "product_name")
}

func TestDispatcher_DryRun(t *testing.T) {
	d := NewDispatcher(nil)
	assert.True(t, d.DryRun())

	res := d.Send(context.Background(), Request{
		Recipient:   "010-1234-5678",
		MessageType: model.MessageShipped,
		Data:        map[string]any{"tracking_number": "CP1"},
	})
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "010-1234-5678", res.Recipient)
	assert.Equal(t, model.MessageShipped, res.MessageType)
	assert.Contains(t, res.Message, "CP1")
	assert.False(t, res.Timestamp.IsZero())
}

func TestDispatcher_Gateway(t *testing.T) {
	m := &mockKakao{}
	m.On("Send", mock.Anything, mock.MatchedBy(func(msg kakao.Message) bool {
		return msg.Recipient == "01012345678" && msg.TemplateCode == model.MessageDelivered
	})).Return(&kakao.SendResponse{MessageID: "m-1", Status: "queued"}, nil)

	res := NewDispatcher(m).Send(context.Background(), Request{
		Recipient:   "01012345678",
		MessageType: model.MessageDelivered,
		Data:        map[string]any{"order_id": "A-1"},
	})
	assert.Equal(t, "success", res.Status)
	m.AssertExpectations(t)
}

func TestDispatcher_Failures(t *testing.T) {
	gatewayDown := &mockKakao{}
	gatewayDown.On("Send", mock.Anything, mock.Anything).Return(nil, &kakao.APIError{StatusCode: 503, Body: "maintenance"})

	tests := []struct {
		name   string
		client kakao.Client
		req    Request
		want   string
	}{
		{"unknown type", nil, Request{Recipient: "01012345678", MessageType: "refund", Data: map[string]any{"a": 1}}, "unknown message type"},
		{"nil data", nil, Request{Recipient: "01012345678", MessageType: model.MessageShipped}, "order_data"},
		{"missing field", nil, Request{Recipient: "01012345678", MessageType: model.MessageShipped, Data: map[string]any{"order_id": "1"}}, "tracking_number"},
		{"no recipient", nil, Request{MessageType: model.MessageShipped, Data: map[string]any{"tracking_number": "1"}}, "Recipient"},
		{"gateway", gatewayDown, Request{Recipient: "01012345678", MessageType: model.MessageShipped, Data: map[string]any{"tracking_number": "1"}}, "maintenance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewDispatcher(tt.client).Send(context.Background(), tt.req)
			assert.Equal(t, "failed", res.Status)
			assert.Contains(t, res.Error, tt.want)
		})
	}
}

func TestTemplatesParse(t *testing.T) {
	for name := range Templates {
		_, ok := parsed[name]
		assert.True(t, ok, name)
	}
	assert.Len(t, parsed, 3)
}
