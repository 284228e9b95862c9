package dsl

import (
	"fmt"
	"strings"

	"github.com/BaSui01/agentgraph/workflow"
)

// Validator DSL 验证器
type Validator struct {
	// routers 额外允许的路由器名称
	routers map[string]bool
}

// NewValidator 创建验证器
func NewValidator(routers ...string) *Validator {
	v := &Validator{routers: map[string]bool{
		RouterToolsCondition: true,
		RouterReflection:     true,
	}}
	for _, r := range routers {
		v.routers[r] = true
	}
	return v
}

// Validate 验证 DSL 定义，返回全部问题
func (v *Validator) Validate(dsl *GraphDSL) []error {
	var errs []error

	// 基础字段验证
	if dsl.Version == "" {
		errs = append(errs, fmt.Errorf("version is required"))
	}
	if dsl.Name == "" {
		errs = append(errs, fmt.Errorf("name is required"))
	}
	if dsl.Entry == "" {
		errs = append(errs, fmt.Errorf("entry is required"))
	}
	if len(dsl.Nodes) == 0 {
		errs = append(errs, fmt.Errorf("nodes must have at least one node"))
	}
	if dsl.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("max_steps must not be negative"))
	}

	// 收集所有节点名
	nodes := make(map[string]bool)
	for _, node := range dsl.Nodes {
		if node.Name == "" {
			errs = append(errs, fmt.Errorf("node name is required"))
			continue
		}
		if node.Name == workflow.Start || node.Name == workflow.End {
			errs = append(errs, fmt.Errorf("node name %q is reserved", node.Name))
			continue
		}
		if nodes[node.Name] {
			errs = append(errs, fmt.Errorf("duplicate node name: %s", node.Name))
		}
		nodes[node.Name] = true
	}

	if dsl.Entry != "" && !nodes[dsl.Entry] {
		errs = append(errs, fmt.Errorf("entry node %q does not exist", dsl.Entry))
	}

	for _, node := range dsl.Nodes {
		errs = append(errs, v.validateNode(&node)...)
	}

	outgoing := make(map[string]bool)
	for i, edge := range dsl.Edges {
		if outgoing[edge.From] {
			errs = append(errs, fmt.Errorf("edge %d: node %q already has an outgoing edge", i, edge.From))
		}
		outgoing[edge.From] = true
		errs = append(errs, v.validateEdge(i, &edge, nodes)...)
	}
	for _, node := range dsl.Nodes {
		if node.Name != "" && !outgoing[node.Name] {
			errs = append(errs, fmt.Errorf("node %s: no outgoing edge", node.Name))
		}
	}

	for _, name := range dsl.InterruptBefore {
		if !nodes[name] {
			errs = append(errs, fmt.Errorf("interrupt_before node %q does not exist", name))
		}
	}

	errs = append(errs, v.validateVariables(dsl)...)
	return errs
}

// validateNode 验证单个节点
func (v *Validator) validateNode(node *NodeDef) []error {
	var errs []error

	switch node.Type {
	case NodeTypeModel:
	case NodeTypeTools:
		if node.Persona != "" || len(node.Tools) > 0 || node.Model != "" {
			errs = append(errs, fmt.Errorf("node %s: tools node takes no persona, model or tools", node.Name))
		}
	default:
		errs = append(errs, fmt.Errorf("node %s: invalid type %q", node.Name, node.Type))
	}
	return errs
}

func (v *Validator) validateTarget(where, target string, nodes map[string]bool) error {
	if target == "" {
		return fmt.Errorf("%s: target is required", where)
	}
	if target != workflow.End && !nodes[target] {
		return fmt.Errorf("%s: target %q does not exist", where, target)
	}
	return nil
}

// validateEdge 验证单条边
func (v *Validator) validateEdge(i int, edge *EdgeDef, nodes map[string]bool) []error {
	var errs []error
	where := fmt.Sprintf("edge %d (%s)", i, edge.From)
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if !nodes[edge.From] {
		add(fmt.Errorf("%s: source node does not exist", where))
	}

	kinds := 0
	if edge.To != "" {
		kinds++
	}
	if edge.Router != "" {
		kinds++
	}
	if len(edge.Routes) > 0 {
		kinds++
	}
	if kinds != 1 {
		add(fmt.Errorf("%s: exactly one of to, router or routes is required", where))
		return errs
	}

	switch {
	case edge.To != "":
		add(v.validateTarget(where, edge.To, nodes))

	case edge.Router != "":
		if !v.routers[edge.Router] {
			add(fmt.Errorf("%s: unknown router %q", where, edge.Router))
		}
		if edge.Router == RouterReflection {
			if edge.Bound == nil {
				add(fmt.Errorf("%s: reflection router requires bound", where))
			} else {
				add(v.validateTarget(where+" bound.tools", edge.Bound.Tools, nodes))
				add(v.validateTarget(where+" bound.reflect", edge.Bound.Reflect, nodes))
				if edge.Bound.Rounds < 0 {
					add(fmt.Errorf("%s: bound.rounds must not be negative", where))
				}
			}
		}
		if edge.Router == RouterToolsCondition && len(edge.Targets) != 1 {
			add(fmt.Errorf("%s: tools_condition router requires exactly one target", where))
		}

	default:
		for j, r := range edge.Routes {
			rw := fmt.Sprintf("%s route %d", where, j)
			add(v.validateTarget(rw, r.To, nodes))
			if _, err := compileCondition(r.When); err != nil {
				add(fmt.Errorf("%s: %w", rw, err))
			}
		}
		if edge.Default != "" {
			add(v.validateTarget(where+" default", edge.Default, nodes))
		}
	}

	for _, t := range edge.Targets {
		add(v.validateTarget(where+" targets", t, nodes))
	}
	return errs
}

// validateVariables 验证 persona 中的 ${var} 引用
func (v *Validator) validateVariables(dsl *GraphDSL) []error {
	var errs []error
	check := func(where, text string) {
		for _, ref := range extractVariableRefs(text) {
			if isBuiltinVariable(ref) {
				continue
			}
			if _, ok := dsl.Variables[ref]; !ok {
				errs = append(errs, fmt.Errorf("%s: variable %q referenced in persona not defined", where, ref))
			}
		}
	}
	for name, text := range dsl.Personas {
		check("persona "+name, text)
	}
	for _, node := range dsl.Nodes {
		if _, named := dsl.Personas[node.Persona]; !named {
			check("node "+node.Name, node.Persona)
		}
	}
	return errs
}

// extractVariableRefs 提取 ${var} 引用
func extractVariableRefs(s string) []string {
	var refs []string
	for {
		start := strings.Index(s, "${")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "}")
		if end == -1 {
			break
		}
		ref := s[start+2 : start+end]
		refs = append(refs, ref)
		s = s[start+end+1:]
	}
	return refs
}
