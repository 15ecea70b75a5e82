package optimizer

import (
	"fmt"
	"strings"

	"github.com/paiban/kaowu/pkg/errors"
	"github.com/paiban/kaowu/pkg/model"
)

// 算法标识
const (
	AlgorithmAnnealing = "sa"
	AlgorithmSwarm     = "pso"
)

// Algorithms 支持的算法
func Algorithms() []string {
	return []string{AlgorithmAnnealing, AlgorithmSwarm}
}

// Canonical 将算法别名归一为 sa / pso，无法识别时返回 false
func Canonical(algorithm string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case AlgorithmAnnealing, "annealing", "simulated_annealing":
		return AlgorithmAnnealing, true
	case AlgorithmSwarm, "swarm", "particle_swarm":
		return AlgorithmSwarm, true
	}
	return "", false
}

// New 根据算法标识与配置映射创建求解引擎
func New(algorithm string, courses []model.Course, rooms []model.Room, proctors []model.Proctor, settings map[string]interface{}, opts ...Option) (Engine, error) {
	name, _ := Canonical(algorithm)
	switch name {
	case AlgorithmAnnealing:
		cfg, err := ParseAnnealingConfig(settings)
		if err != nil {
			return nil, err
		}
		engine, err := NewAnnealer(courses, rooms, proctors, cfg, opts...)
		if err != nil {
			return nil, err
		}
		return engine, nil
	case AlgorithmSwarm:
		cfg, err := ParseSwarmConfig(settings)
		if err != nil {
			return nil, err
		}
		engine, err := NewSwarm(courses, rooms, proctors, cfg, opts...)
		if err != nil {
			return nil, err
		}
		return engine, nil
	default:
		return nil, errors.InvalidConfig("algorithm",
			fmt.Sprintf("不支持的算法 %q，可选: %s", algorithm, strings.Join(Algorithms(), ", ")))
	}
}
