// Package inquiry routes free-text customer messages to a canned FAQ
// response or to a human.
package inquiry

import (
	"fmt"
	"slices"
	"strings"

	goahocorasick "github.com/anknown/ahocorasick"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/internal/resilience"
)

const (
	// FallbackCategory is returned when no keyword matches.
	FallbackCategory = "기타"
	// FallbackResponse is the generic reply for unmatched messages.
	FallbackResponse = "문의사항을 확인하고 빠른 시간 내에 답변드리겠습니다."

	matchConfidence    = 0.8
	fallbackConfidence = 0.3
)

// Category is one row of the FAQ table.
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Response string   `yaml:"response"`
}

// DefaultCategories returns the FAQ table in precedence order. When a
// message contains keywords from several categories, the earliest category
// wins.
func DefaultCategories() []Category {
	return []Category{
		{
			Name:     "배송",
			Keywords: []string{"배송", "언제", "얼마나", "기간", "도착"},
			Response: "일반적으로 캐나다에서 한국까지 7-15일 소요됩니다. 통관 절차에 따라 다소 지연될 수 있으며, 배송 현황은 실시간으로 안내드립니다.",
		},
		{
			Name:     "환불",
			Keywords: []string{"환불", "취소", "반품", "교환"},
			Response: "미개봉 제품에 한해 수령 후 7일 이내 환불 가능합니다. 상품 하자나 오배송의 경우 배송비는 저희가 부담합니다.",
		},
		{
			Name:     "성분",
			Keywords: []string{"성분", "원료", "안전", "부작용", "알레르기"},
			Response: "모든 제품은 캐나다 Health Canada 승인을 받은 안전한 제품입니다. 알레르기가 있으시다면 성분표를 꼭 확인해주세요.",
		},
		{
			Name:     "가격",
			Keywords: []string{"가격", "할인", "쿠폰", "이벤트", "세일"},
			Response: "현재 신규 고객 10% 할인 이벤트를 진행 중입니다. 정기 구독 시 추가 할인 혜택이 있습니다.",
		},
	}
}

// Classifier matches messages against an ordered FAQ table. It is immutable
// after construction and safe for concurrent use.
type Classifier struct {
	categories []Category
	machine    *goahocorasick.Machine
	owner      map[string]int // normalized keyword -> lowest category index
}

// New builds a Classifier over categories, in the given precedence order.
func New(categories []Category) (*Classifier, error) {
	if len(categories) == 0 {
		return nil, resilience.NewConfigError("inquiry: empty category table")
	}

	owner := make(map[string]int)
	for i, cat := range categories {
		if cat.Name == "" {
			return nil, resilience.NewConfigError(fmt.Sprintf("inquiry: category %d has no name", i))
		}
		added := 0
		for _, kw := range cat.Keywords {
			n := normalize(kw)
			if n == "" {
				continue
			}
			added++
			if _, seen := owner[n]; !seen {
				owner[n] = i
			}
		}
		if added == 0 {
			return nil, resilience.NewConfigError(fmt.Sprintf("inquiry: category %q has no keywords", cat.Name))
		}
	}

	keys := make([]string, 0, len(owner))
	for k := range owner {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	patterns := make([][]rune, len(keys))
	for i, k := range keys {
		patterns[i] = []rune(k)
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, resilience.NewConfigError("inquiry: build keyword automaton: " + err.Error())
	}

	return &Classifier{
		categories: slices.Clone(categories),
		machine:    m,
		owner:      owner,
	}, nil
}

// MustDefault returns a Classifier over DefaultCategories.
func MustDefault() *Classifier {
	c, err := New(DefaultCategories())
	if err != nil {
		panic(err)
	}
	return c
}

// Categories returns a copy of the table in precedence order.
func (c *Classifier) Categories() []Category {
	return slices.Clone(c.categories)
}

// Classify returns the first category, in table order, that has any keyword
// as a substring of the normalized message. Unmatched and empty messages
// fall back to a human.
func (c *Classifier) Classify(message string) model.InquiryClassification {
	text := []rune(normalize(message))
	if len(text) == 0 {
		return fallback()
	}

	best := -1
	for _, term := range c.machine.MultiPatternSearch(text, false) {
		idx, ok := c.owner[string(term.Word)]
		if !ok {
			continue
		}
		if best == -1 || idx < best {
			best = idx
		}
		if best == 0 {
			break
		}
	}
	if best == -1 {
		return fallback()
	}

	cat := c.categories[best]
	return model.InquiryClassification{
		Category:      cat.Name,
		Confidence:    matchConfidence,
		AutoResponse:  cat.Response,
		RequiresHuman: false,
	}
}

func fallback() model.InquiryClassification {
	return model.InquiryClassification{
		Category:      FallbackCategory,
		Confidence:    fallbackConfidence,
		AutoResponse:  FallbackResponse,
		RequiresHuman: true,
	}
}

// normalize composes Hangul jamo and case-folds. A cases.Caser is stateful,
// so a fresh one is taken per call.
func normalize(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}
