package component

import "manim-service/pkg/manager"

func init() {
	manager.RegisterComponentPlugin(&RenderJobConsumerPlugin{})
}
