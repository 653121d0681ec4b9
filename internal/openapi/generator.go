// Package openapi generates the OpenAPI 3.1 description of the keygate
// HTTP API programmatically, so the served document can never drift from
// the routes the server actually registers.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// Generate builds the API document with the given server base URL.
func Generate(baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Keygate API",
			Description: "Invite-key session issuance, tool access policy checks, and audit log administration.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["inviteSession"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "cookie",
			Name: "invite-token",
		},
	}
	doc.Components.SecuritySchemes["adminKey"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: "X-Admin-Key",
		},
	}

	addSchemas(doc)

	doc.Paths = openapi3.NewPaths()
	doc.Paths.Set("/api/v1/session", &openapi3.PathItem{
		Post:   issueOperation(),
		Get:    checkOperation(),
		Delete: revokeOperation(),
	})
	doc.Paths.Set("/api/v1/tool/{toolID}/access", &openapi3.PathItem{
		Get: toolAccessOperation(),
	})
	doc.Paths.Set("/api/v1/logs", &openapi3.PathItem{
		Get: logsQueryOperation(),
	})
	doc.Paths.Set("/api/v1/logs/stats", &openapi3.PathItem{
		Get: logsStatsOperation(),
	})
	doc.Paths.Set("/api/v1/logs/export", &openapi3.PathItem{
		Get: logsExportOperation(),
	})

	return doc
}

func addSchemas(doc *openapi3.T) {
	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    typedSchema("integer", "int32"),
							"message": typedSchema("string", ""),
							"context": typedSchema("object", ""),
						},
					},
				},
			},
		},
	}
	doc.Components.Schemas["SessionResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"success": typedSchema("boolean", ""),
				"name":    typedSchema("string", ""),
				"token":   typedSchema("string", ""),
				"error":   typedSchema("string", ""),
			},
		},
	}
	doc.Components.Schemas["CheckResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"authenticated": typedSchema("boolean", ""),
				"name":          typedSchema("string", ""),
				"toolId":        typedSchema("string", ""),
				"expired":       typedSchema("boolean", ""),
				"invalid":       typedSchema("boolean", ""),
			},
		},
	}
	doc.Components.Schemas["AccessLogEntry"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"id":        typedSchema("string", "uuid"),
				"timestamp": typedSchema("string", "date-time"),
				"userName":  typedSchema("string", ""),
				"toolId":    typedSchema("string", ""),
				"action":    typedSchema("string", ""),
				"ip":        typedSchema("string", ""),
				"userAgent": typedSchema("string", ""),
			},
		},
	}
}

func typedSchema(typ, format string) *openapi3.SchemaRef {
	s := &openapi3.Schema{Type: &openapi3.Types{typ}}
	if format != "" {
		s.Format = format
	}
	return &openapi3.SchemaRef{Value: s}
}

func issueOperation() *openapi3.Operation {
	reqBody := &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: "Invite key and the tool the session is being started for.",
			Required:    true,
			Content: openapi3.Content{
				"application/json": &openapi3.MediaType{
					Schema: &openapi3.SchemaRef{
						Value: &openapi3.Schema{
							Type:     &openapi3.Types{"object"},
							Required: []string{"key", "toolId"},
							Properties: openapi3.Schemas{
								"key":    typedSchema("string", ""),
								"toolId": typedSchema("string", ""),
							},
						},
					},
				},
			},
		},
	}
	return &openapi3.Operation{
		Tags:        []string{"session"},
		Summary:     "Issue a session",
		Description: "Verify an invite key and set the invite-token session cookie.",
		OperationID: "issue_session",
		RequestBody: reqBody,
		Responses: newResponses(
			"200", "Session issued",
			openapi3.NewSchemaRef("#/components/schemas/SessionResponse", nil),
		),
	}
}

func checkOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"session"},
		Summary:     "Check the current session",
		OperationID: "check_session",
		Security:    securityFor("inviteSession"),
		Responses: newResponses(
			"200", "Session state",
			openapi3.NewSchemaRef("#/components/schemas/CheckResponse", nil),
		),
	}
}

func revokeOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"session"},
		Summary:     "Revoke the current session",
		Description: "Clears the invite-token cookie.",
		OperationID: "revoke_session",
		Security:    securityFor("inviteSession"),
		Responses: newResponses(
			"200", "Session cleared",
			openapi3.NewSchemaRef("#/components/schemas/SessionResponse", nil),
		),
	}
}

func toolAccessOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"access"},
		Summary:     "Check tool access",
		Description: "Evaluate the session against a tool's access policy. 204 when allowed, 403 with a machine-checkable reason code when denied.",
		OperationID: "tool_access",
		Security:    securityFor("inviteSession"),
		Parameters: openapi3.Parameters{
			&openapi3.ParameterRef{
				Value: &openapi3.Parameter{
					Name:     "toolID",
					In:       "path",
					Required: true,
					Schema:   typedSchema("string", ""),
				},
			},
		},
		Responses: newResponses(
			"204", "Access allowed", nil,
		),
	}
}

func logsQueryOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"logs"},
		Summary:     "Query audit entries",
		OperationID: "query_logs",
		Security:    securityFor("adminKey"),
		Parameters:  logQueryParameters(),
		Responses: newResponses(
			"200", "Matching entries, newest first",
			&openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type: &openapi3.Types{"object"},
					Properties: openapi3.Schemas{
						"entries": {
							Value: &openapi3.Schema{
								Type:  &openapi3.Types{"array"},
								Items: openapi3.NewSchemaRef("#/components/schemas/AccessLogEntry", nil),
							},
						},
						"count": typedSchema("integer", "int32"),
					},
				},
			},
		),
	}
}

func logsStatsOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"logs"},
		Summary:     "Audit statistics",
		Description: "Aggregate counters and rankings over a trailing window of days.",
		OperationID: "log_stats",
		Security:    securityFor("adminKey"),
		Parameters: openapi3.Parameters{
			queryParameter("days", "integer", "Trailing window in days (default 7)"),
		},
		Responses: newResponses(
			"200", "Aggregated statistics", typedSchema("object", ""),
		),
	}
}

func logsExportOperation() *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"logs"},
		Summary:     "Export audit entries as CSV",
		OperationID: "export_logs",
		Security:    securityFor("adminKey"),
		Parameters: openapi3.Parameters{
			queryParameter("start", "string", "Range start (RFC 3339 or YYYY-MM-DD)"),
			queryParameter("end", "string", "Range end (RFC 3339 or YYYY-MM-DD)"),
		},
		Responses: newResponses(
			"200", "CSV document", typedSchema("string", ""),
		),
	}
}

func logQueryParameters() openapi3.Parameters {
	return openapi3.Parameters{
		queryParameter("start", "string", "Range start (RFC 3339 or YYYY-MM-DD)"),
		queryParameter("end", "string", "Range end (RFC 3339 or YYYY-MM-DD)"),
		queryParameter("toolId", "string", "Restrict to one tool"),
		queryParameter("userName", "string", "Restrict to one user"),
		queryParameter("limit", "integer", "Maximum entries to return (default 100)"),
	}
}

func queryParameter(name, typ, description string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:        name,
			In:          "query",
			Description: description,
			Schema:      typedSchema(typ, ""),
		},
	}
}

func securityFor(scheme string) *openapi3.SecurityRequirements {
	reqs := openapi3.NewSecurityRequirements().
		With(openapi3.NewSecurityRequirement().Authenticate(scheme))
	return reqs
}

// newResponses builds the success response plus the standard error shapes.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	success := &openapi3.Response{Description: &successDesc}
	if schema != nil {
		success.Content = openapi3.NewContentWithJSONSchemaRef(schema)
	}
	responses.Set(statusCode, &openapi3.ResponseRef{Value: success})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)
	for code, desc := range map[string]string{
		"400": "Bad request",
		"401": "Unauthorized",
		"403": "Forbidden",
	} {
		d := desc
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &d,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}
	return responses
}
