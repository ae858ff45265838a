package testutil

import "gemcheck/internal/ast"

// Summary is a golden-comparable projection of an ast.Expr subtree.
// It deliberately drops Loc, since fixtures built by hand never bother
// setting it, and would otherwise pin every golden file to zero values
// that carry no signal.
type Summary struct {
	Kind     string    `json:"kind"`
	Name     string    `json:"name,omitempty"`
	IsSelf   bool      `json:"isSelf,omitempty"`
	Value    string    `json:"value,omitempty"`
	Children []Summary `json:"children,omitempty"`
}

// Summarize projects e into a Summary, recursing into every child
// position the ast package defines.
func Summarize(e ast.Expr) Summary {
	if e == nil {
		return Summary{Kind: "nil"}
	}

	switch n := e.(type) {
	case *ast.Empty:
		return Summary{Kind: "Empty"}
	case *ast.ClassDef:
		children := make([]Summary, len(n.Body))
		for i, c := range n.Body {
			children[i] = Summarize(c)
		}
		return Summary{Kind: "ClassDef", Name: n.Name, Children: children}
	case *ast.MethodDef:
		var children []Summary
		if n.Body != nil {
			children = []Summary{Summarize(n.Body)}
		}
		return Summary{Kind: "MethodDef", Name: n.Name, IsSelf: n.IsSelf, Children: children}
	case *ast.Send:
		children := make([]Summary, 0, len(n.Args)+1)
		if n.Receiver != nil {
			children = append(children, Summarize(n.Receiver))
		}
		for _, a := range n.Args {
			children = append(children, Summarize(a))
		}
		return Summary{Kind: "Send", Name: n.FunName, Children: children}
	case *ast.Literal:
		return Summary{Kind: "Literal", Value: n.Value}
	case *ast.Local:
		return Summary{Kind: "Local", Name: n.Name}
	case *ast.UnresolvedIdent:
		return Summary{Kind: "UnresolvedIdent", Name: n.Name}
	case *ast.InsSeq:
		children := make([]Summary, 0, len(n.Stats)+1)
		for _, s := range n.Stats {
			children = append(children, Summarize(s))
		}
		if n.Result != nil {
			children = append(children, Summarize(n.Result))
		}
		return Summary{Kind: "InsSeq", Children: children}
	default:
		return Summary{Kind: "Unknown"}
	}
}
