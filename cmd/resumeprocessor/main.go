package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// 命令行参数定义
var (
	resumeFile  = pflag.StringP("file", "f", "", "简历文件路径 (PDF 或 TXT)")
	maxLen      = pflag.Int("maxlen", 1000, "显示的文本最大长度，设为-1显示全部")
	command     = pflag.String("cmd", "extract", "执行的命令: extract=提取文本和画像, jobs=列出岗位, match=本地匹配岗位")
	sourceURL   = pflag.String("source", "", "岗位来源 README 地址，默认使用内置地址")
	jobLimit    = pflag.Int("limit", 40, "最多抓取的岗位数")
	withDetails = pflag.Bool("details", false, "是否抓取岗位详情页")
	outputJSON  = pflag.Bool("json", false, "以 JSON 输出")
)

func main() {
	pflag.Parse()

	var err error
	switch *command {
	case "extract":
		err = handleExtractCommand()
	case "jobs":
		err = handleJobsCommand()
	case "match":
		err = handleMatchCommand()
	default:
		err = fmt.Errorf("未知命令 '%s'。支持的命令: extract, jobs, match", *command)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		pflag.Usage()
		os.Exit(1)
	}
}
