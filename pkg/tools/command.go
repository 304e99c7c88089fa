package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/fault"
)

// CommandTool runs shell commands inside a sandbox: every command in the
// pipeline must be allowlisted, the working directory is confined to the
// configured root, and output is capped. Violations come back as
// fault.SandboxViolation for the invocation, never as a process fault.
type CommandTool struct {
	allowed   map[string]bool
	root      string
	maxOutput int
}

func NewCommandTool(cfg config.SandboxConfig) (*CommandTool, error) {
	if len(cfg.AllowedCommands) == 0 {
		return nil, fmt.Errorf("sandbox allowlist cannot be empty")
	}

	root := cfg.WorkingDirectory
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving sandbox root: %w", err)
	}

	maxOutput := cfg.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = 64 * 1024
	}

	allowed := make(map[string]bool, len(cfg.AllowedCommands))
	for _, c := range cfg.AllowedCommands {
		allowed[c] = true
	}

	return &CommandTool{
		allowed:   allowed,
		root:      root,
		maxOutput: maxOutput,
	}, nil
}

func (t *CommandTool) GetName() string { return "execute_command" }

func (t *CommandTool) GetDescription() string {
	return "Run an allowlisted shell command inside the sandbox working directory."
}

func (t *CommandTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{
				Name:        "command",
				Type:        "string",
				Description: "The shell command to run",
				Required:    true,
			},
			{
				Name:        "dir",
				Type:        "string",
				Description: "Working directory relative to the sandbox root",
			},
		},
	}
}

func (t *CommandTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	command, _ := args["command"].(string)
	command = strings.TrimSpace(command)
	if command == "" {
		return errorResult(t.GetName(), "command cannot be empty"), nil
	}

	if violation := t.checkCommand(command); violation != nil {
		return errorResult(t.GetName(), violation.Error()), violation
	}

	dir, _ := args["dir"].(string)
	workDir, violation := t.resolveDir(dir)
	if violation != nil {
		return errorResult(t.GetName(), violation.Error()), violation
	}
	if info, err := os.Stat(workDir); err != nil || !info.IsDir() {
		return errorResult(t.GetName(), fmt.Sprintf("working directory %q does not exist", dir)), nil
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = workDir

	output, err := cmd.CombinedOutput()

	truncated := false
	if len(output) > t.maxOutput {
		output = output[:t.maxOutput]
		truncated = true
	}
	content := string(output)
	if truncated {
		content += "\n... [output truncated]"
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return errorResult(t.GetName(), fmt.Sprintf("command failed to start: %v", err)), nil
		}
	}

	result := ToolResult{
		Success:  exitCode == 0,
		Content:  content,
		ToolName: t.GetName(),
		Metadata: map[string]any{
			"exit_code":         exitCode,
			"working_directory": workDir,
			"truncated":         truncated,
		},
	}
	if exitCode != 0 {
		result.Error = fmt.Sprintf("exit status %d", exitCode)
	}
	return result, nil
}

// checkCommand validates every command in the pipeline against the
// allowlist. Splitting on command separators means chained commands like
// "ls | rm -rf" are each checked, not just the first. Redirect operators
// stay inside their segment so "echo hi > out.txt" validates "echo".
func (t *CommandTool) checkCommand(command string) *fault.SandboxViolation {
	if strings.Contains(command, "`") || strings.Contains(command, "$(") {
		return fault.NewSandboxViolation(t.GetName(), "command_substitution",
			"command substitution is not allowed")
	}

	segments := strings.FieldsFunc(command, func(r rune) bool {
		return r == '|' || r == ';' || r == '&' || r == '\n'
	})

	for _, segment := range segments {
		fields := strings.Fields(segment)
		if len(fields) == 0 {
			continue
		}
		base := fields[0]
		if !t.allowed[base] {
			return fault.NewSandboxViolation(t.GetName(), "allowed_commands",
				fmt.Sprintf("command %q is not allowed", base))
		}
	}

	return nil
}

// resolveDir confines the requested directory to the sandbox root.
func (t *CommandTool) resolveDir(dir string) (string, *fault.SandboxViolation) {
	if dir == "" {
		return t.root, nil
	}

	resolved := filepath.Clean(filepath.Join(t.root, dir))
	rel, err := filepath.Rel(t.root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fault.NewSandboxViolation(t.GetName(), "working_directory",
			fmt.Sprintf("directory %q escapes the sandbox root", dir))
	}
	return resolved, nil
}
