// Package buildutil provides utilities for reading and building buildtools
// AST nodes.
//
// Descriptor files are Starlark call lists; this package holds the attribute
// extraction and construction helpers so the descriptor package can stay
// focused on the mapping to module types.
package buildutil

import (
	"github.com/bazelbuild/buildtools/build"
)

// attr returns the right-hand side of the named keyword argument, or nil.
func attr(call *build.CallExpr, name string) build.Expr {
	for _, arg := range call.List {
		assign, ok := arg.(*build.AssignExpr)
		if !ok {
			continue
		}
		lhs, ok := assign.LHS.(*build.Ident)
		if !ok || lhs.Name != name {
			continue
		}
		return assign.RHS
	}
	return nil
}

// Has reports whether the call sets the named keyword argument.
func Has(call *build.CallExpr, name string) bool {
	return attr(call, name) != nil
}

// String extracts a string attribute from a function call by name.
// If name is empty and the call has positional arguments, returns the first
// positional string argument.
// Returns empty string if the attribute is not found or not a string.
func String(call *build.CallExpr, name string) string {
	if name == "" && len(call.List) > 0 {
		if str, ok := call.List[0].(*build.StringExpr); ok {
			return str.Value
		}
		return ""
	}
	if str, ok := attr(call, name).(*build.StringExpr); ok {
		return str.Value
	}
	return ""
}

// Bool extracts a boolean attribute from a function call by name.
// Returns def if the attribute is missing or not True/False.
func Bool(call *build.CallExpr, name string, def bool) bool {
	ident, ok := attr(call, name).(*build.Ident)
	if !ok {
		return def
	}
	switch ident.Name {
	case "True":
		return true
	case "False":
		return false
	}
	return def
}

// StringList extracts a list of strings attribute from a function call by name.
// Returns nil if the attribute is not found or not a list.
// Non-string elements in the list are silently skipped.
func StringList(call *build.CallExpr, name string) []string {
	list, ok := attr(call, name).(*build.ListExpr)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(list.List))
	for _, elem := range list.List {
		if str, ok := elem.(*build.StringExpr); ok {
			result = append(result, str.Value)
		}
	}
	return result
}

// FuncName returns the function name from a CallExpr.
// Returns empty string if the call is not a simple function call
// (e.g., method calls like foo.bar()).
func FuncName(call *build.CallExpr) string {
	if ident, ok := call.X.(*build.Ident); ok {
		return ident.Name
	}
	return ""
}

// Call builds a call statement `name(kw = value, ...)`. Arguments whose value
// is nil are omitted.
func Call(name string, args ...build.Expr) *build.CallExpr {
	call := &build.CallExpr{X: &build.Ident{Name: name}}
	for _, a := range args {
		if a != nil {
			call.List = append(call.List, a)
		}
	}
	return call
}

// StringArg returns `name = "value"`, or nil when value is empty.
func StringArg(name, value string) build.Expr {
	if value == "" {
		return nil
	}
	return kw(name, &build.StringExpr{Value: value})
}

// BoolArg returns `name = True|False`, or nil when value equals def.
func BoolArg(name string, value, def bool) build.Expr {
	if value == def {
		return nil
	}
	lit := "False"
	if value {
		lit = "True"
	}
	return kw(name, &build.Ident{Name: lit})
}

// StringListArg returns `name = ["a", "b"]`, or nil when values is empty.
func StringListArg(name string, values []string) build.Expr {
	if len(values) == 0 {
		return nil
	}
	list := &build.ListExpr{}
	for _, v := range values {
		list.List = append(list.List, &build.StringExpr{Value: v})
	}
	return kw(name, list)
}

func kw(name string, value build.Expr) *build.AssignExpr {
	return &build.AssignExpr{LHS: &build.Ident{Name: name}, Op: "=", RHS: value}
}
