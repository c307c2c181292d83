// Package version 构建版本信息，发布时通过 -ldflags "-X" 注入
package version

var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// GetVersion 获取版本号
func GetVersion() string {
	return Version
}
