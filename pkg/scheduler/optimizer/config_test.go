package optimizer

import (
	"reflect"
	"testing"
	"time"

	"github.com/paiban/kaowu/pkg/errors"
)

func TestParseAnnealingConfig_Defaults(t *testing.T) {
	cfg, err := ParseAnnealingConfig(nil)
	if err != nil {
		t.Fatalf("ParseAnnealingConfig failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultAnnealingConfig()) {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
	if cfg.MaxRuntime != 300*time.Second {
		t.Errorf("Expected 300s runtime budget, got %s", cfg.MaxRuntime)
	}
}

func TestParseAnnealingConfig_Overrides(t *testing.T) {
	cfg, err := ParseAnnealingConfig(map[string]interface{}{
		"start_date": "2025-01-01",
		"schedule_config": map[string]interface{}{
			"start_date":         "2025-12-01",
			"end_date":           "2025-12-10",
			"time_slots":         []interface{}{"08:00", "14:00"},
			"max_exams_per_week": 4,
			"max_exams_per_day":  2,
		},
		"initial_temperature": 500,
		"cooling_rate":        0.9,
		"neighbor_type":       "SMART",
		"max_runtime":         2.5,
		"seed":                99,
		"weights":             map[string]interface{}{"room_conflict": 10},
	})
	if err != nil {
		t.Fatalf("ParseAnnealingConfig failed: %v", err)
	}

	if cfg.StartDate != "2025-12-01" || cfg.EndDate != "2025-12-10" {
		t.Errorf("Expected nested dates to win, got %s..%s", cfg.StartDate, cfg.EndDate)
	}
	if !reflect.DeepEqual(cfg.TimeSlots, []string{"08:00", "14:00"}) {
		t.Errorf("Unexpected time slots %v", cfg.TimeSlots)
	}
	if cfg.MaxExamsPerWeek != 4 || cfg.MaxExamsPerDay != 2 {
		t.Errorf("Unexpected limits %d/%d", cfg.MaxExamsPerWeek, cfg.MaxExamsPerDay)
	}
	if cfg.InitialTemperature != 500 || cfg.CoolingRate != 0.9 || cfg.NeighborType != NeighborSmart {
		t.Errorf("Unexpected annealing params %+v", cfg)
	}
	if cfg.MaxRuntime != 2500*time.Millisecond {
		t.Errorf("Expected 2.5s, got %s", cfg.MaxRuntime)
	}
	if cfg.Seed != 99 {
		t.Errorf("Expected seed 99, got %d", cfg.Seed)
	}
	if cfg.Weights.RoomConflict != 10 {
		t.Errorf("Expected room_conflict weight 10, got %v", cfg.Weights.RoomConflict)
	}
	if cfg.Weights.UnscheduledCourse != 2000 {
		t.Errorf("Expected untouched weights to keep defaults, got %v", cfg.Weights.UnscheduledCourse)
	}
}

func TestParseConfig_LeavesSettingsUntouched(t *testing.T) {
	settings := map[string]interface{}{
		"Seed": 5,
		"schedule_config": map[string]interface{}{
			"Start_Date": "2025-12-01",
			"End_Date":   "2025-12-10",
			"Time_Slots": []interface{}{"08:00", "14:00"},
		},
	}
	want := map[string]interface{}{
		"Seed": 5,
		"schedule_config": map[string]interface{}{
			"Start_Date": "2025-12-01",
			"End_Date":   "2025-12-10",
			"Time_Slots": []interface{}{"08:00", "14:00"},
		},
	}

	cfg, err := ParseSwarmConfig(settings)
	if err != nil {
		t.Fatalf("ParseSwarmConfig failed: %v", err)
	}
	if cfg.StartDate != "2025-12-01" || cfg.Seed != 5 {
		t.Errorf("Expected mixed-case keys to be read, got %s seed %d", cfg.StartDate, cfg.Seed)
	}
	if !reflect.DeepEqual(settings, want) {
		t.Errorf("Settings were modified: %v", settings)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]interface{}
		swarm    bool
		code     errors.Code
	}{
		{"cooling rate above one", map[string]interface{}{"cooling_rate": 1.5}, false, errors.CodeValidationFail},
		{"min above initial temperature", map[string]interface{}{"initial_temperature": 1, "min_temperature": 2}, false, errors.CodeValidationFail},
		{"unknown neighbor", map[string]interface{}{"neighbor_type": "tabu"}, false, errors.CodeValidationFail},
		{"bad time slot", map[string]interface{}{"time_slots": []interface{}{"7h30"}}, false, errors.CodeValidationFail},
		{"inverted range", map[string]interface{}{"start_date": "2025-12-10", "end_date": "2025-12-01"}, false, errors.CodeInvalidTimeRange},
		{"empty swarm", map[string]interface{}{"swarm_size": 0}, true, errors.CodeValidationFail},
		{"negative inertia", map[string]interface{}{"w": -0.1}, true, errors.CodeValidationFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.swarm {
				_, err = ParseSwarmConfig(tt.settings)
			} else {
				_, err = ParseAnnealingConfig(tt.settings)
			}
			if err == nil {
				t.Fatal("Expected error")
			}
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("Expected %s, got %s (%v)", tt.code, got, err)
			}
		})
	}
}

func TestParseSwarmConfig(t *testing.T) {
	cfg, err := ParseSwarmConfig(map[string]interface{}{
		"swarm_size":     20,
		"max_iterations": 200,
		"w":              0.9,
		"c1":             2.0,
		"c2":             1.0,
		"inertia_decay":  true,
	})
	if err != nil {
		t.Fatalf("ParseSwarmConfig failed: %v", err)
	}
	if cfg.SwarmSize != 20 || cfg.MaxIterations != 200 || cfg.W != 0.9 || cfg.C1 != 2.0 || cfg.C2 != 1.0 || !cfg.InertiaDecay {
		t.Errorf("Unexpected swarm config %+v", cfg)
	}
	if cfg.MinInertia != 0.4 {
		t.Errorf("Expected default min inertia 0.4, got %v", cfg.MinInertia)
	}
}
