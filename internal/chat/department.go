package chat

import (
	"fmt"

	"github.com/airu-app/supportchat/internal/ai"
)

type Department string

const (
	DepartmentSurvey          Department = "survey"
	DepartmentInsurance       Department = "insurance"
	DepartmentRealEstate      Department = "real_estate"
	DepartmentCustomerService Department = "customer_service"
	DepartmentGeneral         Department = "general"
)

// DepartmentProfile is pure data consulted at session creation and on each
// turn. Adding a department is a data change, not a code change.
type DepartmentProfile struct {
	ID        Department `json:"id"`
	RoleLabel string     `json:"role_label"`
	Expertise string     `json:"expertise"`
	Welcome   string     `json:"welcome"`
}

var departmentTable = []DepartmentProfile{
	{
		ID:        DepartmentSurvey,
		RoleLabel: "アンケートサポート担当",
		Expertise: "実施中のアンケートの内容・回答方法・設問の意図に関するご案内",
		Welcome:   "こんにちは！アンケートについてご不明な点があれば、お気軽にお尋ねください。",
	},
	{
		ID:        DepartmentInsurance,
		RoleLabel: "保険相談担当",
		Expertise: "保険商品の比較、補償内容、お手続きのご案内",
		Welcome:   "こんにちは！保険に関するご相談を承ります。どのようなことでお困りですか？",
	},
	{
		ID:        DepartmentRealEstate,
		RoleLabel: "不動産相談担当",
		Expertise: "物件探し、住み替え、売却のご相談",
		Welcome:   "こんにちは！不動産に関するご相談を承ります。ご希望の条件をお聞かせください。",
	},
	{
		ID:        DepartmentCustomerService,
		RoleLabel: "カスタマーサービス担当",
		Expertise: "サービスのご利用方法、お困りごと全般のサポート",
		Welcome:   "こんにちは！サービスについてお困りのことがあれば、何でもお尋ねください。",
	},
	{
		ID:        DepartmentGeneral,
		RoleLabel: "総合案内担当",
		Expertise: "その他のお問い合わせ全般のご案内",
		Welcome:   "こんにちは！ご質問やご相談があれば、お気軽にお声がけください。",
	},
}

// Departments returns the closed variant set in display order.
func Departments() []DepartmentProfile {
	out := make([]DepartmentProfile, len(departmentTable))
	copy(out, departmentTable)
	return out
}

// DepartmentByID looks up a profile by its variant identifier.
func DepartmentByID(id string) (DepartmentProfile, bool) {
	for _, p := range departmentTable {
		if string(p.ID) == id {
			return p, true
		}
	}
	return DepartmentProfile{}, false
}

// WelcomeMessage renders the canned welcome. The survey variant names the
// survey being viewed when that context is available.
func (p DepartmentProfile) WelcomeMessage(sc *ai.SurveyContext) string {
	if p.ID == DepartmentSurvey && sc != nil && sc.Title != "" {
		return fmt.Sprintf("こんにちは！「%s」についてご不明な点があれば、お気軽にお尋ねください。", sc.Title)
	}
	return p.Welcome
}

// SystemPrompt describes the department's role for the generation endpoint.
func (p DepartmentProfile) SystemPrompt(sc *ai.SurveyContext) string {
	prompt := fmt.Sprintf("あなたは%sです。対応範囲: %s", p.RoleLabel, p.Expertise)
	if p.ID == DepartmentSurvey && sc != nil && sc.Title != "" {
		prompt += fmt.Sprintf(" 対象アンケート:「%s」", sc.Title)
		if sc.Description != "" {
			prompt += " " + sc.Description
		}
	}
	return prompt
}
