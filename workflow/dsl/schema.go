package dsl

// Node types
const (
	NodeTypeModel = "model"
	NodeTypeTools = "tools"
)

// Builtin routers
const (
	RouterToolsCondition = "tools_condition"
	RouterReflection     = "reflection"
)

// GraphDSL 图 DSL 顶层结构
type GraphDSL struct {
	// Version DSL 版本
	Version string `yaml:"version" json:"version"`
	// Name 图名称
	Name string `yaml:"name" json:"name"`
	// Description 图描述
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Variables 全局变量定义，persona 中以 ${name} 引用
	Variables map[string]VariableDef `yaml:"variables,omitempty" json:"variables,omitempty"`

	// Personas 命名 persona，节点通过名称引用
	Personas map[string]string `yaml:"personas,omitempty" json:"personas,omitempty"`

	// Entry 入口节点
	Entry string `yaml:"entry" json:"entry"`

	Nodes []NodeDef `yaml:"nodes" json:"nodes"`
	Edges []EdgeDef `yaml:"edges" json:"edges"`

	// InterruptBefore 在这些节点执行前暂停
	InterruptBefore []string `yaml:"interrupt_before,omitempty" json:"interrupt_before,omitempty"`
	// MaxSteps 单次 Run/Resume 的节点执行上限（0 使用默认值）
	MaxSteps int `yaml:"max_steps,omitempty" json:"max_steps,omitempty"`

	// Metadata 元数据
	Metadata map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// VariableDef 变量定义
type VariableDef struct {
	Default     string `yaml:"default,omitempty" json:"default,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
}

// NodeDef 节点定义
type NodeDef struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"` // model, tools
	// Model 引用解析器中注册的模型；为空时使用默认模型
	Model string `yaml:"model,omitempty" json:"model,omitempty"`
	// Persona 命名 persona 或内联文本，支持 ${variable} 插值
	Persona string `yaml:"persona,omitempty" json:"persona,omitempty"`
	// Tools 模型节点提供给模型的工具；"*" 表示注册中心中的全部工具
	Tools []string `yaml:"tools,omitempty" json:"tools,omitempty"`
}

// EdgeDef 边定义。To、Router 与 Routes 三者恰好设置其一。
type EdgeDef struct {
	From string `yaml:"from" json:"from"`
	// To 固定边目标
	To string `yaml:"to,omitempty" json:"to,omitempty"`
	// Router 内置或已注册路由器名称
	Router string `yaml:"router,omitempty" json:"router,omitempty"`
	// Routes 按顺序求值的表达式路由，第一个为真的分支生效
	Routes []RouteDef `yaml:"routes,omitempty" json:"routes,omitempty"`
	// Default 无表达式命中时的目标（默认 __end__）
	Default string `yaml:"default,omitempty" json:"default,omitempty"`
	// Targets 声明的条件边目标；为空时由 Routes/Default/Bound 推导
	Targets []string `yaml:"targets,omitempty" json:"targets,omitempty"`
	// Bound reflection 路由器的边界
	Bound *BoundDef `yaml:"bound,omitempty" json:"bound,omitempty"`
}

// RouteDef 表达式路由
type RouteDef struct {
	When string `yaml:"when" json:"when"`
	To   string `yaml:"to" json:"to"`
}

// BoundDef 反思边界定义
type BoundDef struct {
	Tools     string `yaml:"tools" json:"tools"`
	Reflect   string `yaml:"reflect" json:"reflect"`
	Rounds    int    `yaml:"rounds" json:"rounds"`
	RoundSize int    `yaml:"round_size,omitempty" json:"round_size,omitempty"`
	Mode      string `yaml:"mode,omitempty" json:"mode,omitempty"` // rounds, messages
}

func (e EdgeDef) conditional() bool {
	return e.Router != "" || len(e.Routes) > 0
}
