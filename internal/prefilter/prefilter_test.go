package prefilter

import (
	"testing"

	"sms-screening-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	f := New()

	tests := []struct {
		name    string
		text    string
		matched bool
	}{
		{"gambling term", "เล่นบาคาร่าได้เงินจริง", true},
		{"loan term", "สมัครเงินด่วน อนุมัติไว", true},
		{"gambling word", "เว็บพนันออนไลน์", true},
		{"multiple terms", "พนันบาคาร่า เงินด่วน", true},
		{"otp", "OTP 123456", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := f.Check(tt.text)
			assert.Equal(t, tt.matched, ok)
			if tt.matched {
				assert.Equal(t, models.CaseNotPass, v.Case)
				assert.Equal(t, models.CategoryGamblingLoan, v.Category)
				assert.Equal(t, DefaultNote, v.Note)
			} else {
				assert.Equal(t, models.Verdict{}, v)
			}
		})
	}
}

func TestCheckCaseInsensitive(t *testing.T) {
	f := New("Casino", "  LOAN ")

	_, ok := f.Check("Best CASINO bonus")
	assert.True(t, ok)

	_, ok = f.Check("quick loan today")
	assert.True(t, ok)

	assert.Equal(t, []string{"casino", "loan"}, f.Terms())
}

func TestSameVerdictForAnyTerm(t *testing.T) {
	f := New()

	a, _ := f.Check("พนัน")
	b, _ := f.Check("เงินด่วน")
	assert.Equal(t, a, b)
}
