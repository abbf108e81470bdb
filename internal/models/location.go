package models

type City struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Neighborhood struct {
	PostalCode string  `json:"postal_code"`
	AreaName   string  `json:"area_name"`
	CityCode   *string `json:"city_code,omitempty"`
}
