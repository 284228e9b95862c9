// Package dsl 提供 YAML 声明式图定义语言，
// 支持命名 persona、变量插值、expr 路由表达式与中断点，
// 将图定义解析为 workflow.StateGraph。
package dsl
