package optimizer

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/paiban/kaowu/pkg/errors"
	"github.com/paiban/kaowu/pkg/scheduler/constraint"
	"github.com/paiban/kaowu/pkg/scheduler/space"
)

var validate = validator.New()

// CommonConfig 两种算法共用的配置
type CommonConfig struct {
	StartDate       string             `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate         string             `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	ExamDates       []string           `json:"exam_dates,omitempty" validate:"dive,datetime=2006-01-02"`
	TimeSlots       []string           `json:"time_slots,omitempty" validate:"dive,datetime=15:04"`
	MaxExamsPerWeek int                `json:"max_exams_per_week" validate:"gte=0"`
	MaxExamsPerDay  int                `json:"max_exams_per_day" validate:"gte=0"`
	MaxRuntime      time.Duration      `json:"max_runtime" validate:"gte=0"` // 0 表示不限时
	Seed            int64              `json:"seed"`                         // 0 表示按时间取种子
	Weights         constraint.Weights `json:"weights"`
}

// DefaultCommonConfig 默认公共配置
func DefaultCommonConfig() CommonConfig {
	limits := constraint.DefaultLimits()
	return CommonConfig{
		TimeSlots:       space.DefaultTimeSlots(),
		MaxExamsPerWeek: limits.MaxExamsPerWeek,
		MaxExamsPerDay:  limits.MaxExamsPerDay,
		MaxRuntime:      300 * time.Second,
		Weights:         constraint.DefaultWeights(),
	}
}

// Limits 监考工作量上限
func (c CommonConfig) Limits() constraint.Limits {
	return constraint.Limits{MaxExamsPerWeek: c.MaxExamsPerWeek, MaxExamsPerDay: c.MaxExamsPerDay}
}

// SpaceOptions 搜索空间配置
func (c CommonConfig) SpaceOptions() space.Options {
	return space.Options{
		ExamDates: c.ExamDates,
		StartDate: c.StartDate,
		EndDate:   c.EndDate,
		TimeSlots: c.TimeSlots,
	}
}

// AnnealingConfig 模拟退火配置
type AnnealingConfig struct {
	CommonConfig
	InitialTemperature float64      `json:"initial_temperature" validate:"gt=0"`
	MinTemperature     float64      `json:"min_temperature" validate:"gt=0,ltfield=InitialTemperature"`
	CoolingRate        float64      `json:"cooling_rate" validate:"gt=0,lt=1"`
	MaxIterations      int          `json:"max_iterations" validate:"gt=0"`
	NeighborType       NeighborType `json:"neighbor_type" validate:"oneof=swap random smart"`
}

// DefaultAnnealingConfig 默认模拟退火配置
func DefaultAnnealingConfig() *AnnealingConfig {
	return &AnnealingConfig{
		CommonConfig:       DefaultCommonConfig(),
		InitialTemperature: 1000.0,
		MinTemperature:     0.1,
		CoolingRate:        0.995,
		MaxIterations:      10000,
		NeighborType:       NeighborRandom,
	}
}

// Validate 校验配置
func (c *AnnealingConfig) Validate() error {
	return validateStruct(c)
}

// SwarmConfig 粒子群配置
type SwarmConfig struct {
	CommonConfig
	SwarmSize     int     `json:"swarm_size" validate:"gt=0"`
	MaxIterations int     `json:"max_iterations" validate:"gt=0"`
	W             float64 `json:"w" validate:"gte=0"`
	C1            float64 `json:"c1" validate:"gte=0"`
	C2            float64 `json:"c2" validate:"gte=0"`
	InertiaDecay  bool    `json:"inertia_decay"` // 惯性权重线性衰减至 MinInertia
	MinInertia    float64 `json:"min_inertia" validate:"gte=0"`
}

// DefaultSwarmConfig 默认粒子群配置
func DefaultSwarmConfig() *SwarmConfig {
	return &SwarmConfig{
		CommonConfig:  DefaultCommonConfig(),
		SwarmSize:     50,
		MaxIterations: 1000,
		W:             0.7,
		C1:            1.5,
		C2:            1.5,
		MinInertia:    0.4,
	}
}

// Validate 校验配置
func (c *SwarmConfig) Validate() error {
	return validateStruct(c)
}

// ParseAnnealingConfig 从配置映射解析模拟退火配置
func ParseAnnealingConfig(settings map[string]interface{}) (*AnnealingConfig, error) {
	v, err := newSettings(settings)
	if err != nil {
		return nil, err
	}
	cfg := DefaultAnnealingConfig()
	if err := readCommon(v, &cfg.CommonConfig); err != nil {
		return nil, err
	}
	if v.IsSet("initial_temperature") {
		cfg.InitialTemperature = v.GetFloat64("initial_temperature")
	}
	if v.IsSet("min_temperature") {
		cfg.MinTemperature = v.GetFloat64("min_temperature")
	}
	if v.IsSet("cooling_rate") {
		cfg.CoolingRate = v.GetFloat64("cooling_rate")
	}
	if v.IsSet("max_iterations") {
		cfg.MaxIterations = v.GetInt("max_iterations")
	}
	if v.IsSet("neighbor_type") {
		cfg.NeighborType = NeighborType(strings.ToLower(v.GetString("neighbor_type")))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseSwarmConfig 从配置映射解析粒子群配置
func ParseSwarmConfig(settings map[string]interface{}) (*SwarmConfig, error) {
	v, err := newSettings(settings)
	if err != nil {
		return nil, err
	}
	cfg := DefaultSwarmConfig()
	if err := readCommon(v, &cfg.CommonConfig); err != nil {
		return nil, err
	}
	if v.IsSet("swarm_size") {
		cfg.SwarmSize = v.GetInt("swarm_size")
	}
	if v.IsSet("max_iterations") {
		cfg.MaxIterations = v.GetInt("max_iterations")
	}
	if v.IsSet("w") {
		cfg.W = v.GetFloat64("w")
	}
	if v.IsSet("c1") {
		cfg.C1 = v.GetFloat64("c1")
	}
	if v.IsSet("c2") {
		cfg.C2 = v.GetFloat64("c2")
	}
	if v.IsSet("inertia_decay") {
		cfg.InertiaDecay = v.GetBool("inertia_decay")
	}
	if v.IsSet("min_inertia") {
		cfg.MinInertia = v.GetFloat64("min_inertia")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newSettings 将配置映射装入 viper，支持 schedule_config.xxx 嵌套键
// MergeConfigMap 会原地改写键名，这里先深拷贝，调用方的映射保持不变
func newSettings(settings map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	if len(settings) == 0 {
		return v, nil
	}
	if err := v.MergeConfigMap(copySettings(settings)); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "配置解析失败")
	}
	return v, nil
}

// copySettings 深拷贝配置映射，包括嵌套映射与列表
func copySettings(settings map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(settings))
	for k, v := range settings {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return copySettings(val)
	case map[interface{}]interface{}:
		out := make(map[interface{}]interface{}, len(val))
		for k, item := range val {
			out[k] = copyValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

// readCommon 读取公共配置，嵌套键优先于顶层键
func readCommon(v *viper.Viper, cfg *CommonConfig) error {
	if s := firstString(v, "schedule_config.start_date", "start_date"); s != "" {
		cfg.StartDate = s
	}
	if s := firstString(v, "schedule_config.end_date", "end_date"); s != "" {
		cfg.EndDate = s
	}
	if dates := firstSlice(v, "schedule_config.exam_dates", "exam_dates"); len(dates) > 0 {
		cfg.ExamDates = dates
	}
	if slots := firstSlice(v, "schedule_config.time_slots", "time_slots"); len(slots) > 0 {
		cfg.TimeSlots = slots
	}
	if v.IsSet("schedule_config.max_exams_per_week") {
		cfg.MaxExamsPerWeek = v.GetInt("schedule_config.max_exams_per_week")
	}
	if v.IsSet("schedule_config.max_exams_per_day") {
		cfg.MaxExamsPerDay = v.GetInt("schedule_config.max_exams_per_day")
	}
	if v.IsSet("max_runtime") {
		seconds := v.GetFloat64("max_runtime")
		cfg.MaxRuntime = time.Duration(seconds * float64(time.Second))
	}
	if v.IsSet("seed") {
		cfg.Seed = v.GetInt64("seed")
	}
	if v.IsSet("weights") {
		if err := v.UnmarshalKey("weights", &cfg.Weights); err != nil {
			return errors.InvalidConfig("weights", err.Error())
		}
	}
	if cfg.StartDate != "" && cfg.EndDate != "" && cfg.StartDate > cfg.EndDate {
		return errors.New(errors.CodeInvalidTimeRange,
			fmt.Sprintf("开始日期 %s 晚于结束日期 %s", cfg.StartDate, cfg.EndDate))
	}
	return nil
}

func firstString(v *viper.Viper, keys ...string) string {
	for _, k := range keys {
		if v.IsSet(k) {
			return v.GetString(k)
		}
	}
	return ""
}

func firstSlice(v *viper.Viper, keys ...string) []string {
	for _, k := range keys {
		if v.IsSet(k) {
			return v.GetStringSlice(k)
		}
	}
	return nil
}

// validateStruct 校验配置并转换为统一的验证错误
func validateStruct(cfg interface{}) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.Wrap(err, errors.CodeInvalidConfig, "配置校验失败")
	}
	ve := &errors.ValidationErrors{}
	for _, fe := range fieldErrs {
		ve.Add(fe.Namespace(), fmt.Sprintf("不满足规则 %s %s", fe.Tag(), fe.Param()))
	}
	return ve.ToAppError()
}
