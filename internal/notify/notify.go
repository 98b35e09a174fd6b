// Package notify renders order notifications and sends them as KakaoTalk
// business messages.
package notify

import (
	"context"
	"strings"
	"text/template"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/internal/resilience"
	"github.com/jooke-shop/sourcing-cli/pkg/kakao"
)

// Templates maps message types to their message bodies.
var Templates = map[string]string{
	model.MessageOrderConfirmed: "주문이 확인되었습니다. 주문번호: {{.order_id}}\n상품: {{.product_name}}\n예상 배송: 7-15일",
	model.MessageShipped:        "상품이 발송되었습니다. 추적번호: {{.tracking_number}}\n배송조회: jooke.shop/tracking",
	model.MessageDelivered:      "상품이 배송완료되었습니다.\n만족하셨다면 리뷰 작성 부탁드립니다.\n혜택: 다음 구매 시 5% 할인",
}

var parsed = func() map[string]*template.Template {
	out := make(map[string]*template.Template, len(Templates))
	for name, body := range Templates {
		out[name] = template.Must(template.New(name).Option("missingkey=error").Parse(body))
	}
	return out
}()

// Request is one notification to send.
type Request struct {
	Recipient   string         `json:"recipient" validate:"required,min=8"`
	MessageType string         `json:"message_type" validate:"required"`
	Data        map[string]any `json:"order_data"`
}

var validate = validator.New()

// Render fills the template for messageType with data.
func Render(messageType string, data map[string]any) (string, error) {
	tmpl, ok := parsed[messageType]
	if !ok {
		return "", resilience.NewConfigError("unknown message type " + messageType)
	}
	if len(data) == 0 {
		return "", resilience.NewConfigError("order data is required", "order_data")
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", resilience.NewConfigError(err.Error())
	}
	return b.String(), nil
}

// Dispatcher sends rendered notifications. With no gateway client it only
// logs the message.
type Dispatcher struct {
	client kakao.Client
	now    func() time.Time
}

// NewDispatcher creates a Dispatcher. A nil client selects dry-run mode.
func NewDispatcher(client kakao.Client) *Dispatcher {
	return &Dispatcher{client: client, now: time.Now}
}

// DryRun reports whether messages are only logged.
func (d *Dispatcher) DryRun() bool { return d.client == nil }

// Send renders and delivers one notification. It never returns an error;
// failures are reported on the result.
func (d *Dispatcher) Send(ctx context.Context, req Request) model.NotificationResult {
	out := model.NotificationResult{
		Timestamp:   d.now(),
		Recipient:   req.Recipient,
		MessageType: req.MessageType,
	}
	fail := func(err error) model.NotificationResult {
		zap.L().Warn("notify: send failed",
			zap.String("message_type", req.MessageType),
			zap.String("kind", string(resilience.Classify(err))),
			zap.Error(err),
		)
		out.Status = "failed"
		out.Error = err.Error()
		return out
	}

	if err := validate.Struct(req); err != nil {
		return fail(resilience.NewConfigError(err.Error()))
	}
	msg, err := Render(req.MessageType, req.Data)
	if err != nil {
		return fail(err)
	}
	out.Message = msg

	if d.client == nil {
		zap.L().Info("notify: dry run",
			zap.String("recipient", req.Recipient),
			zap.String("message_type", req.MessageType),
			zap.String("message", msg),
		)
		out.Status = "success"
		return out
	}

	if _, err := d.client.Send(ctx, kakao.Message{
		Recipient:    req.Recipient,
		TemplateCode: req.MessageType,
		Text:         msg,
	}); err != nil {
		return fail(eris.Wrap(err, "notify: gateway"))
	}

	zap.L().Info("notify: sent", zap.String("recipient", req.Recipient), zap.String("message_type", req.MessageType))
	out.Status = "success"
	return out
}
