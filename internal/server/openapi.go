package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"gopkg.in/yaml.v2"
)

// openAPISpec is the embedded API document for the admin/routing surface.
// It is served to clients and drives request validation.
const openAPISpec = `openapi: 3.0.3
info:
  title: AI Provider Router
  description: Provider health monitoring and smart routing engine
  version: 1.0.0
paths:
  /v1/route:
    post:
      summary: Route a query to the best provider
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [query, tenant_id]
              properties:
                id:
                  type: string
                query:
                  type: string
                  minLength: 1
                tenant_id:
                  type: string
                  minLength: 1
                priority:
                  type: string
                  enum: [low, normal, high, critical]
                constraints:
                  type: object
                  properties:
                    max_cost:
                      type: number
                      minimum: 0
                    min_quality:
                      type: number
                      minimum: 0
                      maximum: 1
                    exclude_providers:
                      type: array
                      items:
                        type: string
      responses:
        "200":
          description: Routing decision
        "400":
          description: Invalid request
  /v1/usage:
    post:
      summary: Record the outcome of an executed provider call
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [provider_id, tenant_id, success]
              properties:
                provider_id:
                  type: string
                  minLength: 1
                tenant_id:
                  type: string
                success:
                  type: boolean
                response_time_ms:
                  type: number
                  minimum: 0
                tokens_used:
                  type: integer
                  minimum: 0
      responses:
        "204":
          description: Recorded
        "400":
          description: Invalid request
  /v1/health:
    get:
      summary: Full provider health report
      responses:
        "200":
          description: Health status
  /v1/health/{provider}:
    get:
      summary: Health stats for one provider
      parameters:
        - name: provider
          in: path
          required: true
          schema:
            type: string
      responses:
        "200":
          description: Provider stats
        "404":
          description: Unknown provider
  /v1/health/{provider}/check:
    post:
      summary: Force an on-demand health check
      parameters:
        - name: provider
          in: path
          required: true
          schema:
            type: string
      responses:
        "200":
          description: Check result
        "404":
          description: Unknown provider
  /v1/providers:
    get:
      summary: Static capability profiles
      responses:
        "200":
          description: Capabilities
  /v1/providers/{provider}/stats:
    delete:
      summary: Reset a provider's health stats
      parameters:
        - name: provider
          in: path
          required: true
          schema:
            type: string
      responses:
        "204":
          description: Reset
  /v1/decisions:
    get:
      summary: Recent routing decisions
      responses:
        "200":
          description: Decisions
  /v1/decisions/stats:
    get:
      summary: Aggregates over the decision history
      responses:
        "200":
          description: Stats
`

// handleOpenAPISpec serves the embedded OpenAPI document as YAML or JSON
func (s *Server) handleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, ".json") {
		var spec interface{}
		if err := yaml.Unmarshal([]byte(openAPISpec), &spec); err != nil {
			http.Error(w, "Error parsing OpenAPI spec", http.StatusInternalServerError)
			return
		}

		jsonData, err := json.MarshalIndent(convertYAMLKeys(spec), "", "  ")
		if err != nil {
			http.Error(w, "Error converting to JSON", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(jsonData)
		return
	}

	w.Header().Set("Content-Type", "text/yaml")
	w.Write([]byte(openAPISpec))
}

// convertYAMLKeys rewrites yaml.v2 map[interface{}]interface{} values into
// JSON-marshalable map[string]interface{}
func convertYAMLKeys(value interface{}) interface{} {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			if s, ok := key.(string); ok {
				out[s] = convertYAMLKeys(val)
			}
		}
		return out
	case []interface{}:
		for i, item := range v {
			v[i] = convertYAMLKeys(item)
		}
		return v
	default:
		return value
	}
}
