package rbac

const (
	PermQuizImport     = "quiz:import"
	PermQuizExport     = "quiz:export"
	PermQuizList       = "quiz:list"
	PermTemplateView   = "template:view"
	PermTemplateManage = "template:manage"
)

// DefaultPolicy lets editors browse and export; admins do everything.
var DefaultPolicy = Policy{
	"editor": {
		PermQuizExport,
		PermQuizList,
		PermTemplateView,
	},
	"admin": {"*"},
}
