package handlers

import (
	"encoding/json"
	"net/http"
)

// riskScoreSchema describes the RiskScore payload shared by several
// endpoints.
func riskScoreSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"location_id": map[string]string{"type": "string"},
			"risk_score":  map[string]interface{}{"type": "number", "minimum": 0, "maximum": 100},
			"components": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"wastewater": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 100},
					"velocity":   map[string]interface{}{"type": "number", "minimum": 0, "maximum": 100},
					"import":     map[string]interface{}{"type": "number", "minimum": 0, "maximum": 100},
				},
			},
			"confidence":  map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
			"trend":       map[string]interface{}{"type": "string", "enum": []string{"rising", "falling", "stable"}},
			"computed_at": map[string]string{"type": "string", "format": "date-time"},
		},
	}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Outbreak Risk API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Outbreak Risk Platform API",
			"description": "Epidemic risk scoring platform fusing wastewater surveillance, growth velocity, and travel-based import pressure into per-location risk scores",
			"version":     "1.0.0",
			"contact": map[string]string{
				"name": "Outbreak Platform Team",
			},
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/risk/{location_id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get latest risk score",
					"description": "Retrieve the most recently published risk score for one monitored location. Responses carry an X-Data-Status: stale header when the score is older than the staleness threshold.",
					"parameters": []map[string]interface{}{
						{
							"name":        "location_id",
							"in":          "path",
							"description": "Monitored location identifier",
							"required":    true,
							"schema":      map[string]string{"type": "string"},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Latest risk score",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": riskScoreSchema(),
								},
							},
						},
						"404": map[string]interface{}{
							"description": "Location has never been scored",
						},
					},
				},
			},
			"/api/risk/{location_id}/forecast": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get risk forecast",
					"description": "Project a location's risk forward from its persisted score history using exponential smoothing. Forecasts are recomputed per request and never persisted.",
					"parameters": []map[string]interface{}{
						{
							"name":        "location_id",
							"in":          "path",
							"description": "Monitored location identifier",
							"required":    true,
							"schema":      map[string]string{"type": "string"},
						},
						{
							"name":        "days",
							"in":          "query",
							"description": "Forecast horizon in days (default: 7, maximum: 14)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 7, "minimum": 1, "maximum": 14},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Projected daily scores with widening confidence bands",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"location_id":  map[string]string{"type": "string"},
											"days":         map[string]string{"type": "integer"},
											"generated_at": map[string]string{"type": "string", "format": "date-time"},
											"forecast": map[string]interface{}{
												"type": "array",
												"items": map[string]interface{}{
													"type": "object",
													"properties": map[string]interface{}{
														"date":            map[string]string{"type": "string", "format": "date-time"},
														"risk_score":      map[string]interface{}{"type": "number", "minimum": 0, "maximum": 100},
														"confidence_low":  map[string]interface{}{"type": "number", "minimum": 0, "maximum": 100},
														"confidence_high": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 100},
													},
												},
											},
										},
									},
								},
							},
						},
						"400": map[string]interface{}{
							"description": "Invalid days parameter",
						},
						"404": map[string]interface{}{
							"description": "No score history to forecast from",
						},
					},
				},
			},
			"/api/risk/{location_id}/history": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get score history",
					"description": "Retrieve a location's persisted daily score series, oldest first",
					"parameters": []map[string]interface{}{
						{
							"name":        "location_id",
							"in":          "path",
							"description": "Monitored location identifier",
							"required":    true,
							"schema":      map[string]string{"type": "string"},
						},
						{
							"name":        "days",
							"in":          "query",
							"description": "History window in days (default: 30, maximum: 90)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 30, "minimum": 1, "maximum": 90},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Daily score series",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"location_id": map[string]string{"type": "string"},
											"days":        map[string]string{"type": "integer"},
											"history": map[string]interface{}{
												"type": "array",
												"items": map[string]interface{}{
													"type": "object",
													"properties": map[string]interface{}{
														"date":  map[string]string{"type": "string", "format": "date-time"},
														"value": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 100},
													},
												},
											},
										},
									},
								},
							},
						},
						"400": map[string]interface{}{
							"description": "Invalid days parameter",
						},
					},
				},
			},
			"/api/risk/summary/global": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get global risk summary",
					"description": "Aggregate the latest score of every monitored location into severity buckets plus the highest-risk hotspot list",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Global rollup",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"generated_at":     map[string]string{"type": "string", "format": "date-time"},
											"location_count":   map[string]string{"type": "integer"},
											"scored_locations": map[string]string{"type": "integer"},
											"average_risk":     map[string]string{"type": "number"},
											"buckets": map[string]interface{}{
												"type": "object",
												"properties": map[string]interface{}{
													"high":   map[string]string{"type": "integer"},
													"medium": map[string]string{"type": "integer"},
													"low":    map[string]string{"type": "integer"},
												},
											},
											"hotspots": map[string]interface{}{
												"type": "array",
												"items": map[string]interface{}{
													"type": "object",
													"properties": map[string]interface{}{
														"location_id": map[string]string{"type": "string"},
														"name":        map[string]string{"type": "string"},
														"risk_score":  map[string]string{"type": "number"},
														"trend":       map[string]string{"type": "string"},
													},
												},
											},
										},
									},
								},
							},
						},
					},
				},
			},
			"/api/risk/summary/regional": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get regional risk summary",
					"description": "Roll one country's latest scores into a single regional value, weighted by catchment population where known",
					"parameters": []map[string]interface{}{
						{
							"name":        "country",
							"in":          "query",
							"description": "ISO country code",
							"required":    true,
							"schema":      map[string]string{"type": "string"},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Regional rollup",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"country":          map[string]string{"type": "string"},
											"generated_at":     map[string]string{"type": "string", "format": "date-time"},
											"location_count":   map[string]string{"type": "integer"},
											"scored_locations": map[string]string{"type": "integer"},
											"regional_risk":    map[string]string{"type": "number"},
										},
									},
								},
							},
						},
						"400": map[string]interface{}{
							"description": "Missing country parameter",
						},
						"404": map[string]interface{}{
							"description": "No monitored locations in country",
						},
					},
				},
			},
			"/api/locations": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List monitored locations",
					"description": "Retrieve the location catalog with pagination",
					"parameters": []map[string]interface{}{
						{
							"name":        "page",
							"in":          "query",
							"description": "Page number (default: 1)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 1},
						},
						{
							"name":        "limit",
							"in":          "query",
							"description": "Records per page (default: 100)",
							"required":    false,
							"schema":      map[string]interface{}{"type": "integer", "default": 100},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Paginated location catalog",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"data": map[string]interface{}{
												"type": "array",
												"items": map[string]interface{}{
													"type": "object",
													"properties": map[string]interface{}{
														"location_id":          map[string]string{"type": "string"},
														"name":                 map[string]string{"type": "string"},
														"country":              map[string]string{"type": "string"},
														"latitude":             map[string]string{"type": "number"},
														"longitude":            map[string]string{"type": "number"},
														"catchment_population": map[string]interface{}{"type": "integer", "nullable": true},
													},
												},
											},
											"total":       map[string]string{"type": "integer"},
											"page":        map[string]string{"type": "integer"},
											"limit":       map[string]string{"type": "integer"},
											"total_pages": map[string]string{"type": "integer"},
										},
									},
								},
							},
						},
					},
				},
			},
			"/api/locations/{location_id}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get location details",
					"description": "Retrieve one catalog entry by its identifier",
					"parameters": []map[string]interface{}{
						{
							"name":        "location_id",
							"in":          "path",
							"description": "Monitored location identifier",
							"required":    true,
							"schema":      map[string]string{"type": "string"},
						},
					},
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Catalog entry",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"location_id":          map[string]string{"type": "string"},
											"name":                 map[string]string{"type": "string"},
											"country":              map[string]string{"type": "string"},
											"latitude":             map[string]string{"type": "number"},
											"longitude":            map[string]string{"type": "number"},
											"catchment_population": map[string]interface{}{"type": "integer", "nullable": true},
										},
									},
								},
							},
						},
						"404": map[string]interface{}{
							"description": "Unknown location",
						},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check if the API and its database are reachable",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "API is healthy",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"status":   map[string]string{"type": "string"},
											"database": map[string]string{"type": "string"},
										},
									},
								},
							},
						},
						"503": map[string]interface{}{
							"description": "Database is unreachable",
						},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
