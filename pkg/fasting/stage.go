package fasting

import (
	"Fasting-Tracker/domain"
	"fmt"
	"math"
)

type phase struct {
	id          string
	name        string
	description string
	start       float64
	end         float64
}

// phases partition [0, +Inf) into contiguous half-open hour ranges.
var phases = []phase{
	{"phase1", "血糖平稳期", "身体仍在消化上一餐，血糖和胰岛素处于正常水平", 0, 4},
	{"phase2", "血糖下降期", "血糖逐渐回落，胰岛素水平下降，开始动用肝糖原", 4, 8},
	{"phase3", "糖原消耗期", "肝糖原持续消耗，身体准备切换到脂肪供能", 8, 12},
	{"phase4", "脂肪燃烧期", "脂肪分解加速，酮体开始生成", 12, 16},
	{"phase5", "深度燃脂期", "酮体水平升高，细胞自噬逐步活跃", 16, math.Inf(1)},
}

// Classify returns the fasting stage containing elapsedHours.
func Classify(elapsedHours float64) (domain.FastingStage, error) {
	if math.IsNaN(elapsedHours) || elapsedHours < 0 {
		return domain.FastingStage{}, fmt.Errorf("%w: elapsed hours %v", domain.ErrInvalidInput, elapsedHours)
	}
	for _, p := range phases {
		if elapsedHours >= p.start && elapsedHours < p.end {
			return p.toStage(), nil
		}
	}
	// +Inf itself falls outside every half-open range.
	return phases[len(phases)-1].toStage(), nil
}

// Stages returns the full phase table in order.
func Stages() []domain.FastingStage {
	out := make([]domain.FastingStage, 0, len(phases))
	for _, p := range phases {
		out = append(out, p.toStage())
	}
	return out
}

func (p phase) toStage() domain.FastingStage {
	stage := domain.FastingStage{
		ID:          p.id,
		Name:        p.name,
		Description: p.description,
		RangeStart:  p.start,
	}
	if !math.IsInf(p.end, 1) {
		end := p.end
		stage.RangeEnd = &end
	}
	return stage
}
