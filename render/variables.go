package render

import (
	"text/template/parse"
)

// reference is one use of a context variable inside a template.
type reference struct {
	name string
	// optional is set when the use tolerates an absent value,
	// e.g. the tested argument of default or an if condition.
	optional bool
}

// collectReferences walks every tree of a parsed template set in order and
// returns the context variables they reference.
func collectReferences(trees []*parse.Tree) []reference {
	var refs []reference
	for _, tree := range trees {
		if tree == nil || tree.Root == nil {
			continue
		}
		refs = walkNode(tree.Root, true, refs)
	}
	return refs
}

// walkNode appends the references below node. topDot reports whether dot is
// still the root context; inside with/range bodies it is not and plain
// field references are skipped.
func walkNode(node parse.Node, topDot bool, refs []reference) []reference {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return refs
		}
		for _, child := range n.Nodes {
			refs = walkNode(child, topDot, refs)
		}
	case *parse.ActionNode:
		refs = walkPipe(n.Pipe, topDot, false, refs)
	case *parse.IfNode:
		refs = walkPipe(n.Pipe, topDot, true, refs)
		refs = walkNode(n.List, topDot, refs)
		refs = walkNode(n.ElseList, topDot, refs)
	case *parse.WithNode:
		refs = walkPipe(n.Pipe, topDot, true, refs)
		refs = walkNode(n.List, false, refs)
		refs = walkNode(n.ElseList, topDot, refs)
	case *parse.RangeNode:
		refs = walkPipe(n.Pipe, topDot, false, refs)
		refs = walkNode(n.List, false, refs)
		refs = walkNode(n.ElseList, topDot, refs)
	case *parse.TemplateNode:
		refs = walkPipe(n.Pipe, topDot, false, refs)
	}
	return refs
}

// walkPipe appends the references of a pipeline. A pipeline used as a
// condition marks a bare field as optional.
func walkPipe(pipe *parse.PipeNode, topDot, condition bool, refs []reference) []reference {
	if pipe == nil {
		return refs
	}

	for i, cmd := range pipe.Cmds {
		// {{ .x | default "y" }}: .x feeds the default call
		fedToDefault := i+1 < len(pipe.Cmds) && isDefaultCall(pipe.Cmds[i+1])
		soleField := len(cmd.Args) == 1
		bareCondition := condition && len(pipe.Cmds) == 1 && soleField

		// {{ index . "host-name" }} reads the root map directly
		if name, ok := keyLookup(cmd, topDot); ok {
			refs = append(refs, reference{
				name:     name,
				optional: fedToDefault || (condition && len(pipe.Cmds) == 1),
			})
		}

		for j, arg := range cmd.Args {
			optional := (soleField && (fedToDefault || bareCondition)) ||
				// {{ default "y" .x }}: .x is the tested value
				(isDefaultCall(cmd) && j == 2)
			refs = walkArg(arg, topDot, optional, refs)
		}
	}
	return refs
}

func walkArg(arg parse.Node, topDot, optional bool, refs []reference) []reference {
	switch a := arg.(type) {
	case *parse.FieldNode:
		if topDot && len(a.Ident) > 0 {
			refs = append(refs, reference{name: a.Ident[0], optional: optional})
		}
	case *parse.VariableNode:
		// $.name always addresses the root context
		if len(a.Ident) > 1 && a.Ident[0] == "$" {
			refs = append(refs, reference{name: a.Ident[1], optional: optional})
		}
	case *parse.ChainNode:
		refs = walkArg(a.Node, topDot, optional, refs)
	case *parse.PipeNode:
		// (index . "x") as the tested value of default behaves like a condition
		refs = walkPipe(a, topDot, optional, refs)
	}
	return refs
}

func isDefaultCall(cmd *parse.CommandNode) bool {
	if cmd == nil || len(cmd.Args) == 0 {
		return false
	}
	ident, ok := cmd.Args[0].(*parse.IdentifierNode)
	return ok && ident.Ident == "default"
}

// keyLookup reports the key of an index or get call on the root context
// with a literal key. Such lookups yield nil for an absent key instead of
// failing, so they are checked up front like field references.
func keyLookup(cmd *parse.CommandNode, topDot bool) (string, bool) {
	if cmd == nil || len(cmd.Args) != 3 {
		return "", false
	}
	ident, ok := cmd.Args[0].(*parse.IdentifierNode)
	if !ok || (ident.Ident != "index" && ident.Ident != "get") {
		return "", false
	}
	key, ok := cmd.Args[2].(*parse.StringNode)
	if !ok {
		return "", false
	}
	switch target := cmd.Args[1].(type) {
	case *parse.DotNode:
		if topDot {
			return key.Text, true
		}
	case *parse.VariableNode:
		if len(target.Ident) == 1 && target.Ident[0] == "$" {
			return key.Text, true
		}
	}
	return "", false
}

// Variables returns the context variables a template references, in order of
// first appearance. It is used to generate descriptors for new bundles.
func Variables(name string, text []byte) ([]string, error) {
	tmpl, err := parseTemplate(name, text)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var names []string
	for _, ref := range collectReferences(treesOf(tmpl)) {
		if _, ok := seen[ref.name]; ok {
			continue
		}
		seen[ref.name] = struct{}{}
		names = append(names, ref.name)
	}
	return names, nil
}
