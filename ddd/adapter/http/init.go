package http

import "manim-service/pkg/manager"

func init() {
	manager.RegisterControllerPlugin(&RenderControllerPlugin{})
}
