package handler

import (
	"net/http"

	"github.com/paiban/kaowu/internal/constraints"
)

// ConstraintLibrary GET /constraints/library 返回约束及可配置参数
func ConstraintLibrary(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, constraints.LibraryResponse{Library: constraints.GetLibrary()})
}
