package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "meshnode",
	Short: "UDP 网格节点",
	Long: `meshnode 运行一个基于 UDP 的点对点网格节点。

节点通过种子节点加入网格，使用 Discovery/PeerList 学习其余节点，
并定期通过心跳维护节点表。`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newRunCmd(), newVersionCmd())
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}
