package version

const Value = "6.3.0"

const ToolName = "pumuki"

func EvidenceGenerator() string {
	return ToolName + "/" + Value
}
