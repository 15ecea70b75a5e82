package model

// Proctor 监考老师
type Proctor struct {
	ID       string `json:"proctor_id" csv:"proctor_id" validate:"required"`
	Name     string `json:"name" csv:"name"`
	Location string `json:"location,omitempty" csv:"location"`
}
