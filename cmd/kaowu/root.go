package main

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/paiban/kaowu/internal/csvio"
	"github.com/paiban/kaowu/pkg/logger"
	"github.com/paiban/kaowu/pkg/model"
)

// inputFlags 各子命令共用的输入参数
type inputFlags struct {
	courses   string
	rooms     string
	proctors  string
	config    string
	delimiter string
	logLevel  string
}

// problem 读入的排考问题
type problem struct {
	courses  []model.Course
	rooms    []model.Room
	proctors []model.Proctor
	settings map[string]interface{}
}

func newRootCommand() *cobra.Command {
	in := &inputFlags{}

	root := &cobra.Command{
		Use:   "kaowu",
		Short: "考试排考工具",
		Long: "基于模拟退火与粒子群优化的考试排考工具\n" +
			"读取科目、考场、监考老师 CSV，输出排考方案与约束评估",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(logger.Config{
				Level:  in.logLevel,
				Format: "console",
				Output: "stderr",
			})
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&in.courses, "courses", "courses.csv", "科目 CSV 文件")
	flags.StringVar(&in.rooms, "rooms", "rooms.csv", "考场 CSV 文件")
	flags.StringVar(&in.proctors, "proctors", "", "监考老师 CSV 文件（可选）")
	flags.StringVar(&in.config, "config", "", "求解配置文件（yaml/json/toml）")
	flags.StringVar(&in.delimiter, "delimiter", ",", "CSV 分隔符")
	flags.StringVar(&in.logLevel, "log-level", "warn", "日志级别 debug/info/warn/error")

	root.AddCommand(newSolveCommand(in))
	root.AddCommand(newEvaluateCommand(in))
	root.AddCommand(newBenchCommand(in))
	return root
}

// load 读取 CSV 输入与配置文件
func (in *inputFlags) load() (*problem, error) {
	delim, size := utf8.DecodeRuneInString(in.delimiter)
	if size == 0 || size != len(in.delimiter) {
		return nil, fmt.Errorf("分隔符必须是单个字符: %q", in.delimiter)
	}
	loader := csvio.NewLoader(delim)

	p := &problem{}
	var err error
	if p.courses, err = loader.LoadCourses(in.courses); err != nil {
		return nil, err
	}
	if p.rooms, err = loader.LoadRooms(in.rooms); err != nil {
		return nil, err
	}
	if p.proctors, err = loader.LoadProctors(in.proctors); err != nil {
		return nil, err
	}
	if p.settings, err = loadSettings(in.config); err != nil {
		return nil, err
	}
	return p, nil
}

// loadSettings 读取配置文件为配置映射，path 为空时返回空映射
func loadSettings(path string) (map[string]interface{}, error) {
	settings := make(map[string]interface{})
	if path == "" {
		return settings, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	for k, val := range v.AllSettings() {
		settings[strings.ToLower(k)] = val
	}
	return settings, nil
}
