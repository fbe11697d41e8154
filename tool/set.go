package tool

import "github.com/hupe1980/convomesh/core"

// Dependencies are the collaborators the built-in tools delegate to. Nil
// collaborators leave their tools out.
type Dependencies struct {
	Facts     FactManager
	Knowledge KnowledgeSearcher
	Directory core.Directory
	Frames    FrameSource
}

// Builtin returns the built-in tools the dependencies support.
func Builtin(deps Dependencies) []Tool {
	var tools []Tool
	if deps.Facts != nil {
		tools = append(tools, NewSaveFactTool(deps.Facts), NewDeleteFactTool(deps.Facts))
	}
	if deps.Knowledge != nil {
		tools = append(tools, NewSearchKnowledgeTool(deps.Knowledge))
	}
	if deps.Directory != nil {
		tools = append(tools, NewCountUsersTool(deps.Directory), NewCountUsersBySubcategoryTool(deps.Directory))
	}
	if deps.Frames != nil {
		tools = append(tools, NewViewCameraTool(deps.Frames))
	}
	return tools
}
