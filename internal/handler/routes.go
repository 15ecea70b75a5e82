package handler

import (
	"net/http"
	"strings"
)

// Register 在 mux 上注册 API 路由，prefix 形如 /api/v1
func Register(mux *http.ServeMux, prefix string, runs *RunHandler, schedule *ScheduleHandler) {
	prefix = strings.TrimRight(prefix, "/")

	mux.HandleFunc("POST "+prefix+"/runs", runs.Start)
	mux.HandleFunc("GET "+prefix+"/runs", runs.List)
	mux.HandleFunc("GET "+prefix+"/runs/{id}", runs.Get)
	mux.HandleFunc("POST "+prefix+"/runs/{id}/stop", runs.Stop)

	mux.HandleFunc("POST "+prefix+"/schedule/evaluate", schedule.Evaluate)
	mux.HandleFunc("GET "+prefix+"/constraints/library", ConstraintLibrary)
}
