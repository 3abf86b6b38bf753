package meal

import (
	"Fasting-Tracker/domain"
	"strings"
)

var mealTypeLabels = map[domain.MealType]string{
	domain.MealTypeBreakfast: "早餐",
	domain.MealTypeLunch:     "午餐",
	domain.MealTypeDinner:    "晚餐",
	domain.MealTypeSnack:     "加餐",
}

const promptSchema = `{
  "foodName": "食物名称",
  "calories": 0,
  "macros": {"protein": "蛋白质克数", "fat": "脂肪克数", "carbs": "碳水克数"},
  "tags": ["简短标签"],
  "advice": "结合轻断食的饮食建议",
  "nextStep": "下一餐或下一个断食周期的具体行动"
}`

// BuildPrompt renders the instruction sent to the AI provider. It is a pure
// function of its input.
func BuildPrompt(input domain.MealAnalysisInput) string {
	var b strings.Builder

	b.WriteString("你是一名熟悉轻断食（16:8 等间歇性断食）的营养师。")
	b.WriteString("用户正处于进食窗口，请分析这一餐并帮助其保持断食节奏。\n")

	if label, ok := mealTypeLabels[input.MealType]; ok {
		b.WriteString("餐次：")
		b.WriteString(label)
		b.WriteString("\n")
	}

	description := strings.TrimSpace(input.Description)
	switch {
	case description != "" && hasImage(input):
		b.WriteString("请结合图片与描述进行分析。描述：")
		b.WriteString(description)
		b.WriteString("\n")
	case description != "":
		b.WriteString("餐食描述：")
		b.WriteString(description)
		b.WriteString("\n")
	default:
		b.WriteString("请根据附带的餐食图片进行分析。\n")
	}
	if ref := strings.TrimSpace(input.ImageRef); ref != "" {
		b.WriteString("图片地址：")
		b.WriteString(ref)
		b.WriteString("\n")
	}

	b.WriteString("只返回一个 JSON 对象，不要使用 markdown，不要附加任何解释。")
	b.WriteString("必须包含以下键：\"foodName\"、\"calories\"、\"tags\"、\"advice\"、\"nextStep\"；")
	b.WriteString("\"macros\" 可选。\"calories\" 为非负数字（千卡），\"tags\" 为字符串数组。\n")
	b.WriteString("格式示例：\n")
	b.WriteString(promptSchema)
	return b.String()
}

func hasImage(input domain.MealAnalysisInput) bool {
	return strings.TrimSpace(input.ImageRef) != "" || (input.Image != nil && len(input.Image.Data) > 0)
}
