package threat

import "time"

type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type CreateThreatRequest struct {
	Latitude   *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude  *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	CategoryID int64    `json:"category_id" validate:"required,gt=0"`
}

type CategoryResponse struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	DateFrom time.Time `json:"date_from"`
}

type ThreatResponse struct {
	ID        int64            `json:"id"`
	Latitude  float64          `json:"latitude"`
	Longitude float64          `json:"longitude"`
	Category  CategoryResponse `json:"category"`
	DateFrom  time.Time        `json:"date_from"`
}

func ToCategoryResponse(c Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, Name: c.Name, DateFrom: c.DateFrom}
}

func ToThreatResponse(t Threat) ThreatResponse {
	return ThreatResponse{
		ID:        t.ID,
		Latitude:  t.Latitude,
		Longitude: t.Longitude,
		Category:  ToCategoryResponse(t.Category),
		DateFrom:  t.DateFrom,
	}
}
