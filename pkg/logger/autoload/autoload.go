// Package autoload initializes the process logger from the environment on
// import. Blank-import it from main.
package autoload

import (
	configx "github.com/shoptalklabs/shoptalk/pkg/config"
	logx "github.com/shoptalklabs/shoptalk/pkg/logger"
)

func init() {
	cfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*cfg)
}
