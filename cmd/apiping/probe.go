package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dushixiang/apiping/internal/config"
	"github.com/dushixiang/apiping/internal/models"
	"github.com/dushixiang/apiping/internal/prober"
	"github.com/spf13/cobra"
	"gorm.io/datatypes"
)

var probeFlags struct {
	method       string
	body         string
	headers      []string
	timeoutMs    int
	statusCode   int
	bodyContains string
	insecure     bool
	details      bool
}

var probeCmd = &cobra.Command{
	Use:   "probe <url>",
	Short: "对 URL 执行一次探测并输出结果",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		headers := make(map[string]string, len(probeFlags.headers))
		for _, h := range probeFlags.headers {
			key, value, ok := strings.Cut(h, ":")
			if !ok {
				return fmt.Errorf("请求头格式错误，应为 Key: Value: %s", h)
			}
			headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}

		endpoint := &models.Endpoint{
			URL:       args[0],
			Method:    probeFlags.method,
			Body:      probeFlags.body,
			Headers:   datatypes.NewJSONType(headers),
			TimeoutMs: probeFlags.timeoutMs,
		}
		if probeFlags.statusCode > 0 || probeFlags.bodyContains != "" {
			endpoint.ExpectedResponse = datatypes.NewJSONType(&models.ExpectedResponse{
				StatusCode:   probeFlags.statusCode,
				BodyContains: probeFlags.bodyContains,
			})
		}

		p := prober.NewProber(config.ProberConfig{InsecureSkipVerify: probeFlags.insecure})
		result := p.Probe(cmd.Context(), endpoint, 1, prober.Options{IncludeDetails: probeFlags.details})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		if !result.IsSuccess {
			os.Exit(2)
		}
		return nil
	},
}

func init() {
	probeCmd.Flags().StringVarP(&probeFlags.method, "method", "X", "GET", "请求方法")
	probeCmd.Flags().StringVarP(&probeFlags.body, "data", "d", "", "请求体，仅 POST/PUT/PATCH 发送")
	probeCmd.Flags().StringArrayVarP(&probeFlags.headers, "header", "H", nil, "请求头，格式 Key: Value，可重复")
	probeCmd.Flags().IntVar(&probeFlags.timeoutMs, "timeout", models.DefaultTimeoutMs, "超时时间（毫秒）")
	probeCmd.Flags().IntVar(&probeFlags.statusCode, "expect-status", 0, "期望的状态码，默认 2xx 视为成功")
	probeCmd.Flags().StringVar(&probeFlags.bodyContains, "expect-body", "", "响应体需要包含的文本")
	probeCmd.Flags().BoolVarP(&probeFlags.insecure, "insecure", "k", false, "跳过 TLS 证书校验")
	probeCmd.Flags().BoolVar(&probeFlags.details, "details", false, "输出响应头和响应体")
}
