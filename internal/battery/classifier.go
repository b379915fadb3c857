// Package battery 电池控制的纯计算逻辑：动力类型识别、电量等级、告警优先级与售出标记。
package battery

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/langchou/batterycontrol/internal/models"
)

// 词表均为去重音后的小写形式
var (
	electricTerms = []string{"electrico", "electrica", "electricidad", "electric"}
	pureTerms     = []string{"puro", "pura", "pure"}
	hybridTerms   = []string{"hibrido", "hibrida", "hybrid", "plug-in", "plugin", "enchufable"}
	gasolineTerms = []string{"gasolina", "gasoline", "petrol"}
	dieselTerms   = []string{"diesel", "gasoleo"}
)

type field int

const (
	fieldMotor field = iota
	fieldFuel
)

// Rule 一条识别规则
type Rule struct {
	Name   string
	field  field
	match  func(text string) bool
	Result models.VehicleType
}

// rules 按顺序求值，首条命中生效；动力字段优先于燃料字段
var rules = []Rule{
	{
		Name:  "motor_bev",
		field: fieldMotor,
		match: func(s string) bool {
			return strings.Contains(s, "bev") || (containsAny(s, electricTerms) && containsAny(s, pureTerms))
		},
		Result: models.VehicleTypeBEV,
	},
	{
		Name:  "motor_phev",
		field: fieldMotor,
		match: func(s string) bool {
			return strings.Contains(s, "phev") || containsAny(s, hybridTerms)
		},
		Result: models.VehicleTypePHEV,
	},
	{
		Name:   "fuel_electric",
		field:  fieldFuel,
		match:  func(s string) bool { return containsAny(s, electricTerms) },
		Result: models.VehicleTypeBEV,
	},
	{
		Name:   "fuel_hybrid",
		field:  fieldFuel,
		match:  func(s string) bool { return containsAny(s, hybridTerms) },
		Result: models.VehicleTypePHEV,
	},
	{
		Name:  "fuel_combustion",
		field: fieldFuel,
		match: func(s string) bool {
			return containsAny(s, gasolineTerms) || containsAny(s, dieselTerms)
		},
		Result: models.VehicleTypeICE,
	},
}

// DefaultRule 无规则命中时的结果
const DefaultRule = "default"

// Classify 根据原始动力/燃料文本识别动力类型，总是返回 BEV/PHEV/ICE 之一
func Classify(motorType, fuel string) models.VehicleType {
	t, _ := ClassifyRule(motorType, fuel)
	return t
}

// ClassifyRule 同 Classify，并返回命中的规则名
func ClassifyRule(motorType, fuel string) (models.VehicleType, string) {
	motor := fold(motorType)
	fl := fold(fuel)
	for _, r := range rules {
		text := motor
		if r.field == fieldFuel {
			text = fl
		}
		if text != "" && r.match(text) {
			return r.Result, r.Name
		}
	}
	return models.VehicleTypeICE, DefaultRule
}

// IsElectrifiedSignal 宽松预过滤：任一字段含电动/混动信号即视为电动化库存
func IsElectrifiedSignal(motorType, fuel string) bool {
	for _, s := range []string{fold(motorType), fold(fuel)} {
		if s == "" {
			continue
		}
		if strings.Contains(s, "bev") || strings.Contains(s, "phev") ||
			containsAny(s, electricTerms) || containsAny(s, hybridTerms) {
			return true
		}
	}
	return false
}

// ElectrifiedPatterns 预过滤对应的 ILIKE 模式，供 SQL 查询使用
//
// 数据库侧无法去重音，因此同时给出带重音的写法，
// 命中后仍由 IsElectrifiedSignal 在内存中复核。
func ElectrifiedPatterns() []string {
	terms := []string{"bev", "phev", "eléctric", "hybrid", "híbrid", "plug-in", "plugin", "enchufable"}
	terms = append(terms, electricTerms...)
	terms = append(terms, hybridTerms...)

	seen := make(map[string]bool, len(terms))
	patterns := make([]string, 0, len(terms))
	for _, t := range terms {
		if seen[t] {
			continue
		}
		seen[t] = true
		patterns = append(patterns, "%"+t+"%")
	}
	return patterns
}

// fold 小写并去除重音符号
func fold(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
