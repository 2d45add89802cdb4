// Package main 提供 meshnode 命令行入口
package main

func main() {
	Execute()
}
