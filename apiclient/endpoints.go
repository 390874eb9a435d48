package apiclient

import (
	"slices"
	"strings"
)

// DefaultBaseURL is used when neither configuration nor EnvBaseURL set one.
const DefaultBaseURL = "https://hexstrike-ai.dennisleehappy.org"

// EnvBaseURL overrides the base URL.
const EnvBaseURL = "HEXSTRIKE_API_URL"

// Named non-tool endpoints.
const (
	EndpointHealth    = "health"
	EndpointTelemetry = "telemetry"
)

// Category groups tools in the catalog.
type Category string

// Tool categories.
const (
	CategoryNetwork      Category = "network"
	CategoryWeb          Category = "web"
	CategoryAuth         Category = "auth"
	CategoryBinary       Category = "binary"
	CategoryForensics    Category = "forensics"
	CategoryExploitation Category = "exploitation"
	CategoryCloud        Category = "cloud"
)

// Categories returns every tool category in catalog order.
func Categories() []Category {
	return []Category{
		CategoryNetwork, CategoryWeb, CategoryAuth, CategoryBinary,
		CategoryForensics, CategoryExploitation, CategoryCloud,
	}
}

const toolPathPrefix = "/api/tools/"

var staticEndpoints = map[string]string{
	EndpointHealth:    "/health",
	EndpointTelemetry: "/api/telemetry",
}

var toolCatalog = map[Category][]string{
	CategoryNetwork: {
		"nmap", "nmap-advanced", "masscan", "rustscan", "subfinder", "amass",
		"fierce", "dnsenum", "autorecon", "arp-scan", "nbtscan", "smbmap",
		"enum4linux", "enum4linux-ng", "rpcclient", "responder",
	},
	CategoryWeb: {
		"gobuster", "dirb", "dirsearch", "ffuf", "wfuzz", "nikto", "sqlmap",
		"xsser", "wpscan", "zap", "burpsuite-alternative", "wafw00f", "httpx",
		"katana", "hakrawler", "gau", "waybackurls", "paramspider", "arjun",
		"dalfox", "jwt-analyzer", "api-fuzzer", "api-schema-analyzer",
		"graphql-scanner", "dotdotpwn", "jaeles", "browser-agent",
		"http-framework", "x8", "anew", "qsreplace", "uro",
	},
	CategoryAuth: {
		"hydra", "medusa", "netexec", "hashcat", "john",
	},
	CategoryBinary: {
		"gdb", "gdb-peda", "ghidra", "radare2", "angr", "pwntools", "ropgadget",
		"ropper", "one-gadget", "libc-database", "checksec", "binwalk",
		"strings", "objdump", "xxd", "pwninit",
	},
	CategoryForensics: {
		"volatility", "volatility3", "foremost", "exiftool", "steghide", "hashpump",
	},
	CategoryExploitation: {
		"metasploit", "msfvenom",
	},
	CategoryCloud: {
		"prowler", "scout-suite", "pacu", "cloudmapper", "kube-bench",
		"kubehunter", "trivy", "clair", "docker-bench-security", "terrascan",
		"checkov", "falco",
	},
}

var toolCategory = func() map[string]Category {
	m := make(map[string]Category)
	for cat, tools := range toolCatalog {
		for _, t := range tools {
			m[t] = cat
		}
	}
	return m
}()

// Endpoint returns the path of a named endpoint or tool.
func Endpoint(name string) (string, bool) {
	if p, ok := staticEndpoints[name]; ok {
		return p, true
	}
	if _, ok := toolCategory[name]; ok {
		return toolPathPrefix + name, true
	}
	return "", false
}

// IsTool reports whether name is a tool in the catalog.
func IsTool(name string) bool {
	_, ok := toolCategory[name]
	return ok
}

// ToolCategory returns the category of a tool.
func ToolCategory(name string) (Category, bool) {
	c, ok := toolCategory[name]
	return c, ok
}

// ToolNames returns every tool name, sorted.
func ToolNames() []string {
	names := make([]string, 0, len(toolCategory))
	for name := range toolCategory {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ToolsInCategory returns the tools of cat in catalog order.
func ToolsInCategory(cat Category) []string {
	return slices.Clone(toolCatalog[cat])
}

// URL joins baseURL and path.
func URL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}
