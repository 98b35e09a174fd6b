package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jooke-shop/sourcing-cli/internal/model"
)

// DefaultExchangeRate is the KRW per CAD rate used when none is configured.
const DefaultExchangeRate = 1350.0

const marketSystem = "당신은 캐나다 제품의 한국 시장 진출 가능성을 평가하는 역직구 소싱 전문가입니다. 반드시 JSON 객체 하나로만 답하세요."

const marketPrompt = `다음 캐나다 제품의 한국 시장 진출 가능성을 분석해주세요.

제품 정보:
%s

다음 항목을 분석해주세요:
1. 한국 시장성 (market_score, 1-10점)
2. 경쟁 강도 (competition_score, 1-10점)
3. 예상 마진율 (margin_percent, %%)
4. 진출 추천 점수 (entry_score, 1-100점)
5. 핵심 키워드 5개 (keywords)
6. 타겟 고객층 (target_customer)
7. 리스크 요인 (risks)
8. 추천 여부 (recommend, "예" 또는 "아니오")

다음 키를 가진 JSON으로만 답하세요:
{"market_score": 0, "competition_score": 0, "margin_percent": 0, "entry_score": 0, "keywords": [], "target_customer": "", "risks": [], "recommend": ""}`

const marginSystem = "당신은 역직구 가격 책정과 마케팅 전문가입니다. 정확한 숫자를 포함한 JSON 객체 하나로만 답하세요."

const marginPrompt = `다음 캐나다 제품의 한국 판매 전략을 수립해주세요.

제품 정보:
%s

현재 환율: 1 CAD = %s 원

다음 항목을 계산해주세요:
1. 한국 예상 판매가 (korean_price_krw, 원)
2. 순마진율 (net_margin_percent, %%)
3. 배송비 포함 총비용 (landed_cost_krw, 원)
4. 경쟁 제품 가격대 (competitor_price_low_krw, competitor_price_high_krw)
5. 마케팅 포인트 3개 (marketing_points)
6. 해시태그 10개 (hashtags)
7. 제품 설명문 50자 이내 (short_description)
8. 진출 기회 점수 (opportunity_score, 1-100점)
9. 추천 여부 (recommend, "예" 또는 "아니오")

정확한 숫자로 다음 키를 가진 JSON만 답하세요:
{"korean_price_krw": 0, "net_margin_percent": 0, "landed_cost_krw": 0, "competitor_price_low_krw": 0, "competitor_price_high_krw": 0, "marketing_points": [], "hashtags": [], "short_description": "", "opportunity_score": 0, "recommend": ""}`

// productJSON renders the product for embedding in a prompt.
func productJSON(p model.Product) string {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", p)
	}
	return string(b)
}

// BuildMarketPrompt renders the market-fit prompt for p.
func BuildMarketPrompt(p model.Product) string {
	return fmt.Sprintf(marketPrompt, productJSON(p))
}

// BuildMarginPrompt renders the margin prompt for p at the given rate.
func BuildMarginPrompt(p model.Product, rate float64) string {
	r := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", rate), "0"), ".")
	return fmt.Sprintf(marginPrompt, productJSON(p), r)
}
