package meal

import (
	"Fasting-Tracker/domain"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt_Deterministic(t *testing.T) {
	input := domain.MealAnalysisInput{Description: "牛油果鸡蛋吐司", MealType: domain.MealTypeBreakfast}
	assert.Equal(t, BuildPrompt(input), BuildPrompt(input))
}

func TestBuildPrompt_NamesEveryRequiredKey(t *testing.T) {
	prompt := BuildPrompt(domain.MealAnalysisInput{Description: "一碗燕麦粥"})
	for _, key := range []string{`"foodName"`, `"calories"`, `"tags"`, `"advice"`, `"nextStep"`, `"macros"`} {
		assert.Contains(t, prompt, key)
	}
	assert.Contains(t, prompt, "JSON")
}

func TestBuildPrompt_Variants(t *testing.T) {
	cases := []struct {
		name    string
		input   domain.MealAnalysisInput
		want    []string
		notWant []string
	}{
		{
			name:    "description only",
			input:   domain.MealAnalysisInput{Description: "  鸡胸肉沙拉 ", MealType: domain.MealTypeLunch},
			want:    []string{"餐食描述：鸡胸肉沙拉\n", "餐次：午餐"},
			notWant: []string{"图片地址", "附带的餐食图片"},
		},
		{
			name:    "image only",
			input:   domain.MealAnalysisInput{ImageRef: "https://cdn.example.com/meals/a.jpg"},
			want:    []string{"附带的餐食图片", "图片地址：https://cdn.example.com/meals/a.jpg"},
			notWant: []string{"餐食描述", "餐次"},
		},
		{
			name: "description and image",
			input: domain.MealAnalysisInput{
				Description: "番茄炒蛋",
				MealType:    domain.MealTypeDinner,
				Image:       &domain.ImageInput{Data: []byte{0xff, 0xd8}, MimeType: "image/jpeg"},
			},
			want:    []string{"请结合图片与描述进行分析。描述：番茄炒蛋", "餐次：晚餐"},
			notWant: []string{"图片地址"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prompt := BuildPrompt(tc.input)
			for _, s := range tc.want {
				assert.Contains(t, prompt, s)
			}
			for _, s := range tc.notWant {
				assert.NotContains(t, prompt, s)
			}
		})
	}
}
