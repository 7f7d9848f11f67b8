package sandbox

import (
	"context"
	"os"

	"github.com/dop251/goja"
	bridgeerrors "github.com/jrsteele09/datum-mcp-bridge/internal/errors"
	"github.com/pkg/errors"
)

// Profile names.
const (
	ProfileExecute = "execute"
	ProfileSearch  = "search"
)

var (
	_ Profile = (*ExecutionProfile)(nil)
	_ Profile = (*SearchProfile)(nil)
)

// ExecutionProfile exposes datum.request bound to one caller's credential.
type ExecutionProfile struct {
	Client      *APIClient
	AccessToken string
	UserID      string
}

func (p *ExecutionProfile) Name() string { return ProfileExecute }

func (p *ExecutionProfile) Bind(ctx context.Context, vm *goja.Runtime) (goja.Value, error) {
	datum := vm.NewObject()
	if err := datum.Set("request", p.request(ctx, vm)); err != nil {
		return nil, errors.Wrap(err, "Bind datum.request")
	}
	if err := vm.Set("datum", datum); err != nil {
		return nil, errors.Wrap(err, "Bind datum")
	}
	return datum, nil
}

// request returns a promise so callers may await it or chain on it.
// The call itself completes before the promise is handed back.
func (p *ExecutionProfile) request(ctx context.Context, vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := vm.NewPromise()

		opts, err := requestOptions(vm, call.Argument(0))
		if err != nil {
			reject(vm.NewGoError(err))
			return vm.ToValue(promise)
		}

		resp, err := p.Client.Do(ctx, p.AccessToken, p.UserID, opts)
		if err != nil {
			reject(vm.NewGoError(err))
			return vm.ToValue(promise)
		}

		result := vm.ToValue(string(resp.Body))
		if resp.JSON {
			if result, err = jsonParse(vm, string(resp.Body)); err != nil {
				reject(thrownValue(vm, err))
				return vm.ToValue(promise)
			}
		}

		out := vm.NewObject()
		_ = out.Set("status", resp.Status)
		_ = out.Set("result", result)
		resolve(out)
		return vm.ToValue(promise)
	}
}

func requestOptions(vm *goja.Runtime, arg goja.Value) (RequestOptions, error) {
	if !present(arg) {
		return RequestOptions{}, &bridgeerrors.UsageError{Message: "datum.request requires an options object"}
	}
	obj := arg.ToObject(vm)

	opts := RequestOptions{
		Method:      text(obj.Get("method")),
		Path:        text(obj.Get("path")),
		ContentType: text(obj.Get("contentType")),
		RawBody:     truthy(obj.Get("rawBody")),
	}
	if v := obj.Get("organizationId"); truthy(v) {
		opts.OrganizationID = v.String()
	}
	if v := obj.Get("projectId"); truthy(v) {
		opts.ProjectID = v.String()
	}
	if opts.OrganizationID != "" && opts.ProjectID != "" {
		return RequestOptions{}, &bridgeerrors.UsageError{Message: "Provide only one of organizationId or projectId"}
	}

	if q := obj.Get("query"); present(q) {
		query := q.ToObject(vm)
		opts.Query = map[string]string{}
		for _, key := range query.Keys() {
			v := query.Get(key)
			if v == nil || goja.IsUndefined(v) {
				continue
			}
			opts.Query[key] = v.String()
		}
	}

	body := obj.Get("body")
	switch {
	case opts.RawBody && present(body):
		s := body.String()
		opts.Body = &s
	case !opts.RawBody && truthy(body):
		encoded, err := jsonStringify(vm, body)
		if err != nil {
			return RequestOptions{}, toExecutionError(vm, err)
		}
		s := encoded.String()
		opts.Body = &s
	}
	return opts, nil
}

// SearchProfile exposes the flattened OpenAPI document as spec.
type SearchProfile struct {
	SpecPath string
}

func (p *SearchProfile) Name() string { return ProfileSearch }

func (p *SearchProfile) Bind(ctx context.Context, vm *goja.Runtime) (goja.Value, error) {
	raw, err := os.ReadFile(p.SpecPath)
	if err != nil || len(raw) == 0 {
		return nil, bridgeerrors.ErrSpecUnavailable
	}

	spec, err := jsonParse(vm, string(raw))
	if err != nil {
		return nil, errors.Wrap(toExecutionError(vm, err), "Bind spec")
	}
	if err := vm.Set("spec", spec); err != nil {
		return nil, errors.Wrap(err, "Bind spec")
	}
	return spec, nil
}

func present(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

func truthy(v goja.Value) bool {
	return v != nil && v.ToBoolean()
}

func text(v goja.Value) string {
	if !present(v) {
		return ""
	}
	return v.String()
}

func thrownValue(vm *goja.Runtime, err error) goja.Value {
	if ex, ok := err.(*goja.Exception); ok {
		return ex.Value()
	}
	return vm.NewGoError(err)
}
