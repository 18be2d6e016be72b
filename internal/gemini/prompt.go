package gemini

import (
	"github.com/google/generative-ai-go/genai"

	"sms-screening-service/internal/models"
)

// SystemInstruction is shared by every provider (Thai SMS screening prompt)
const SystemInstruction = `
คุณคือผู้เชี่ยวชาญด้านการคัดกรองข้อความ SMS ที่เข้มงวด
วิเคราะห์ข้อความที่ให้มาแล้วจำแนกเป็น 3 ผลลัพธ์: 'case' ('pass'/'not pass'), 'category', และ 'note'
Category ที่เป็นไปได้: 'OTP/Transactional', 'Marketing/Promo', 'Financial Scam', 'Gambling/Illegal', 'Phishing', หรือ 'Others'
ตอบกลับด้วย JSON Format เท่านั้น: {"case": "pass"/"not pass", "category": "ประเภทข้อความ", "note": "เหตุผล"}
`

// ResponseSchema constrains Gemini output to the three verdict fields
func ResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"case": {
				Type: genai.TypeString,
				Enum: []string{string(models.CasePass), string(models.CaseNotPass)},
			},
			"category": {
				Type: genai.TypeString,
				Enum: models.ClassifierCategories,
			},
			"note": {
				Type:        genai.TypeString,
				Description: "short reason for the verdict",
			},
		},
		Required: []string{"case", "category", "note"},
	}
}
