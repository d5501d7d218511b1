package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// GenerateCompletion writes the completion script for shell to w.
func GenerateCompletion(w io.Writer, shell string) error {
	var script string
	switch shell {
	case "bash":
		script = bashCompletion()
	case "zsh":
		script = zshCompletion()
	case "fish":
		script = fishCompletion()
	default:
		return fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish)", shell)
	}
	_, err := io.WriteString(w, script)
	return err
}

func bashCompletion() string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n# Bash completion for escrowctl\n\n")
	b.WriteString("_escrowctl_completion() {\n")
	b.WriteString("    local cur prev\n    COMPREPLY=()\n")
	b.WriteString("    cur=\"${COMP_WORDS[COMP_CWORD]}\"\n    prev=\"${COMP_WORDS[COMP_CWORD-1]}\"\n\n")

	names := make([]string, 0, len(Commands))
	for _, c := range Commands {
		names = append(names, c.Name)
	}
	fmt.Fprintf(&b, "    local commands=%q\n", strings.Join(names, " "))
	fmt.Fprintf(&b, "    local global_flags=%q\n\n", strings.Join(GlobalFlags, " "))

	b.WriteString("    case \"${prev}\" in\n")
	for _, c := range Commands {
		if len(c.Subcommands) == 0 {
			continue
		}
		fmt.Fprintf(&b, "        %s)\n", c.Name)
		fmt.Fprintf(&b, "            COMPREPLY=( $(compgen -W %q -- ${cur}) )\n", strings.Join(c.Names(), " "))
		b.WriteString("            return 0\n            ;;\n")
	}
	b.WriteString("        --config)\n            COMPREPLY=( $(compgen -f -- ${cur}) )\n            return 0\n            ;;\n")
	b.WriteString("        --log-level)\n            COMPREPLY=( $(compgen -W \"debug info warn error\" -- ${cur}) )\n            return 0\n            ;;\n")
	b.WriteString("        --log-format)\n            COMPREPLY=( $(compgen -W \"json text\" -- ${cur}) )\n            return 0\n            ;;\n")
	b.WriteString("        --output)\n            COMPREPLY=( $(compgen -W \"table json jsonpath=\" -- ${cur}) )\n            return 0\n            ;;\n")
	b.WriteString("    esac\n\n")
	b.WriteString("    if [[ ${cur} == -* ]]; then\n")
	b.WriteString("        COMPREPLY=( $(compgen -W \"${global_flags}\" -- ${cur}) )\n        return 0\n    fi\n")
	b.WriteString("    COMPREPLY=( $(compgen -W \"${commands}\" -- ${cur}) )\n    return 0\n}\n\n")
	b.WriteString("complete -F _escrowctl_completion escrowctl\n")
	return b.String()
}

func zshCompletion() string {
	var b strings.Builder
	b.WriteString("#compdef escrowctl\n\n_escrowctl() {\n")
	b.WriteString("    local -a commands\n    commands=(\n")
	for _, c := range Commands {
		fmt.Fprintf(&b, "        '%s:%s'\n", c.Name, c.Summary)
	}
	b.WriteString("    )\n\n")

	for _, c := range Commands {
		if len(c.Subcommands) == 0 {
			continue
		}
		fmt.Fprintf(&b, "    local -a %s_cmds\n    %s_cmds=(\n", c.Name, c.Name)
		for _, s := range c.Subcommands {
			fmt.Fprintf(&b, "        '%s:%s'\n", s.Name, s.Summary)
		}
		b.WriteString("    )\n\n")
	}

	b.WriteString("    _arguments -C \\\n")
	b.WriteString("        '--config[Configuration file path]:file:_files' \\\n")
	b.WriteString("        '--api-url[API base URL]:url:' \\\n")
	b.WriteString("        '--output[Output format]:format:(table json jsonpath=)' \\\n")
	b.WriteString("        '--log-level[Log level]:level:(debug info warn error)' \\\n")
	b.WriteString("        '--log-format[Log format]:format:(json text)' \\\n")
	b.WriteString("        '1: :->command' \\\n        '*:: :->args'\n\n")
	b.WriteString("    case $state in\n        command)\n            _describe 'command' commands\n            ;;\n")
	b.WriteString("        args)\n            case $words[1] in\n")
	for _, c := range Commands {
		if len(c.Subcommands) == 0 {
			continue
		}
		fmt.Fprintf(&b, "                %s)\n                    _describe '%s command' %s_cmds\n                    ;;\n", c.Name, c.Name, c.Name)
	}
	b.WriteString("            esac\n            ;;\n    esac\n}\n\n_escrowctl \"$@\"\n")
	return b.String()
}

func fishCompletion() string {
	var b strings.Builder
	b.WriteString("# Fish completion for escrowctl\n\n")
	for _, c := range Commands {
		fmt.Fprintf(&b, "complete -c escrowctl -f -n \"__fish_use_subcommand\" -a %q -d %q\n", c.Name, c.Summary)
	}
	for _, c := range Commands {
		if len(c.Subcommands) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n# %s subcommands\n", c.Name)
		for _, s := range c.Subcommands {
			fmt.Fprintf(&b, "complete -c escrowctl -f -n \"__fish_seen_subcommand_from %s\" -a %q -d %q\n", c.Name, s.Name, s.Summary)
		}
	}
	b.WriteString("\n# Global flags\n")
	b.WriteString("complete -c escrowctl -l config -r -d \"Configuration file path\"\n")
	b.WriteString("complete -c escrowctl -l api-url -x -d \"API base URL\"\n")
	b.WriteString("complete -c escrowctl -l output -x -a \"table json jsonpath=\" -d \"Output format\"\n")
	b.WriteString("complete -c escrowctl -l log-level -x -a \"debug info warn error\" -d \"Log level\"\n")
	b.WriteString("complete -c escrowctl -l log-format -x -a \"json text\" -d \"Log format\"\n")
	return b.String()
}

// InstallCompletion writes the script under home and returns its path.
func InstallCompletion(home, shell string) (string, error) {
	var installPath string
	switch shell {
	case "bash":
		installPath = filepath.Join(home, ".bash_completion.d", "escrowctl")
	case "zsh":
		installPath = filepath.Join(home, ".zsh", "completion", "_escrowctl")
	case "fish":
		installPath = filepath.Join(home, ".config", "fish", "completions", "escrowctl.fish")
	default:
		return "", fmt.Errorf("unsupported shell: %s", shell)
	}
	if err := os.MkdirAll(filepath.Dir(installPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create completion directory: %w", err)
	}

	f, err := os.Create(installPath)
	if err != nil {
		return "", fmt.Errorf("failed to write completion script: %w", err)
	}
	defer f.Close()
	if err := GenerateCompletion(f, shell); err != nil {
		return "", err
	}
	return installPath, nil
}
