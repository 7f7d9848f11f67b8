package server

import (
	"fmt"
	"strings"
)

// maxListedProducts bounds the product names shown in the search description.
const maxListedProducts = 30

const datumTypes = `
interface DatumRequestOptions {
  method: "GET" | "POST" | "PUT" | "PATCH" | "DELETE";
  path: string;
  query?: Record<string, string | number | boolean | undefined>;
  body?: unknown;
  contentType?: string;  // Custom Content-Type header (defaults to application/json if body is present)
  rawBody?: boolean;     // If true, sends body as-is without JSON.stringify
  organizationId?: string; // Optional org context (switches host)
  projectId?: string;      // Optional project context (switches host)
}

interface DatumResponse<T = unknown> {
  status: number;
  result: T;
}

declare const datum: {
  request<T = unknown>(options: DatumRequestOptions): Promise<DatumResponse<T>>;
};
`

const specTypes = `
interface OperationInfo {
  summary?: string;
  description?: string;
  tags?: string[];
  parameters?: Array<{ name: string; in: string; required?: boolean; schema?: unknown; description?: string }>;
  requestBody?: { required?: boolean; content?: Record<string, { schema?: unknown }> };
  responses?: Record<string, { description?: string; content?: Record<string, { schema?: unknown }> }>;
}

interface PathItem {
  get?: OperationInfo;
  post?: OperationInfo;
  put?: OperationInfo;
  patch?: OperationInfo;
  delete?: OperationInfo;
}

declare const spec: {
  paths: Record<string, PathItem>;
};
`

const searchExamples = `
// Find endpoints by product/group tag
async () => {
  const results = [];
  for (const [path, methods] of Object.entries(spec.paths)) {
    for (const [method, op] of Object.entries(methods)) {
      if (op.tags?.some(t => t.toLowerCase() === 'iam')) {
        results.push({ method: method.toUpperCase(), path, summary: op.summary });
      }
    }
  }
  return results;
}

// Get endpoint with requestBody schema (refs are resolved)
async () => {
  const op = spec.paths['/apis/iam.miloapis.com/v1alpha1/users']?.post;
  return { summary: op?.summary, requestBody: op?.requestBody };
}

// Get endpoint parameters
async () => {
  const op = spec.paths['/apis/compute.miloapis.com/v1alpha1/projects']?.get;
  return op?.parameters;
}`

func searchDescription(products []string) string {
	listed := products
	if len(listed) > maxListedProducts {
		listed = listed[:maxListedProducts]
	}
	return fmt.Sprintf(`Search the Datum OpenAPI spec. All $refs are pre-resolved inline.

Products: %s... (%d total)

Types:
%s
Examples:
%s`, strings.Join(listed, ", "), len(products), specTypes, searchExamples)
}

func executeDescription() string {
	return fmt.Sprintf(`Execute JavaScript code against the Datum API. First use the 'search' tool to find the right endpoints, then write code using the datum.request() function.

Available in your code:
%s
Your code must be an async arrow function that returns the result.

Example: list projects
async () => {
  return datum.request({ method: "GET", path: "/apis/compute.miloapis.com/v1alpha1/projects" });
}`, datumTypes)
}
