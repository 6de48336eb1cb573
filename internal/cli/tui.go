package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ccsr-gis/watershed3d/pkg/pipeline"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// tuiOpts holds the command-line flags for the tui command.
type tuiOpts struct {
	noCache    bool
	configPath string
}

// tuiCommand creates the tui command. Running the binary with no arguments
// lands here too.
func (c *CLI) tuiCommand() *cobra.Command {
	var opts tuiOpts

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Explore the terrain interactively in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTUI(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "skip the alignment cache")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file (default watershed3d.toml)")
	return cmd
}

func (c *CLI) runTUI(ctx context.Context, opts tuiOpts) error {
	cfg, err := LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, cfg, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	preview, err := os.CreateTemp("", appName+"-preview-*.html")
	if err != nil {
		return fmt.Errorf("create preview file: %w", err)
	}
	preview.Close()

	model := newSceneModel(ctx, cfg, runner, preview.Name())
	p := tea.NewProgram(model, tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(sceneModel); ok && m.err != nil {
		return m.err
	}
	return nil
}

// scaleStep is the exaggeration increment for the +/- keys.
const scaleStep = 0.25

// sceneModel is the bubbletea model for the interactive viewer: a layer
// list, a live vertical exaggeration, and a preview HTML that is rewritten
// after every change.
type sceneModel struct {
	ctx    context.Context
	cfg    Config
	runner *pipeline.Runner

	layers   []string
	cursor   int
	selected int
	scaleZ   float64

	previewPath string
	status      string
	lastCached  bool
	err         error
}

func newSceneModel(ctx context.Context, cfg Config, runner *pipeline.Runner, previewPath string) sceneModel {
	m := sceneModel{
		ctx:         ctx,
		cfg:         cfg,
		runner:      runner,
		layers:      cfg.LayerNames(),
		scaleZ:      pipeline.DefaultScaleZ,
		previewPath: previewPath,
	}
	m.rebuild()
	return m
}

func (m sceneModel) Init() tea.Cmd {
	return nil
}

func (m sceneModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.layers)-1 {
				m.cursor++
			}
		case "enter", " ":
			if m.cursor != m.selected {
				m.selected = m.cursor
				m.rebuild()
			}
		case "+", "=":
			m.scaleZ += scaleStep
			m.rebuild()
		case "-", "_":
			if m.scaleZ-scaleStep >= scaleStep {
				m.scaleZ -= scaleStep
				m.rebuild()
			}
		case "e":
			m.export()
		}
	}
	return m, nil
}

// rebuild runs the pipeline for the selected layer and rewrites the preview
// file. Builds are synchronous: the scene path is single-threaded and the
// alignment cache keeps layer switches fast after the first visit.
func (m *sceneModel) rebuild() {
	result, layer, err := m.execute([]string{pipeline.FormatHTML})
	if err != nil {
		m.status = StyleWarning.Render(err.Error())
		return
	}

	if err := os.WriteFile(m.previewPath, result.Artifacts[pipeline.FormatHTML], 0o644); err != nil {
		m.status = StyleWarning.Render(fmt.Sprintf("write preview: %v", err))
		return
	}
	m.lastCached = result.CacheInfo.AlignHit
	m.status = fmt.Sprintf("rendered %s at %.2gx", layer.Name, m.scaleZ)
}

// export writes the current scene as HTML and PNG to the output directory.
func (m *sceneModel) export() {
	result, layer, err := m.execute([]string{pipeline.FormatHTML, pipeline.FormatPNG})
	if err != nil {
		m.status = StyleWarning.Render(err.Error())
		return
	}

	if err := os.MkdirAll(m.cfg.Render.OutputDir, 0o755); err != nil {
		m.status = StyleWarning.Render(fmt.Sprintf("create output dir: %v", err))
		return
	}
	var paths []string
	for _, format := range []string{pipeline.FormatHTML, pipeline.FormatPNG} {
		path := filepath.Join(m.cfg.Render.OutputDir, exportName(layer.Name, format))
		if err := os.WriteFile(path, result.Artifacts[format], 0o644); err != nil {
			m.status = StyleWarning.Render(fmt.Sprintf("write %s: %v", path, err))
			return
		}
		paths = append(paths, path)
	}
	m.status = "exported " + strings.Join(paths, ", ")
}

func (m *sceneModel) execute(formats []string) (*pipeline.Result, Layer, error) {
	layer, err := m.cfg.Layer(m.layers[m.selected])
	if err != nil {
		return nil, Layer{}, err
	}

	opts := pipelineOptions(m.cfg, layer, m.scaleZ, false)
	opts.Formats = formats
	// The TUI owns the terminal; stage logs would tear the frame.
	opts.Logger = newLogger(io.Discard, log.InfoLevel)

	result, err := m.runner.Execute(m.ctx, opts)
	if err != nil {
		return nil, Layer{}, err
	}
	return result, layer, nil
}

func (m sceneModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Watershed Terrain Viewer"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ drape layer  +/- exaggeration  e export  q quit"))
	b.WriteString("\n\n")

	for i, name := range m.layers {
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		marker := "( )"
		if i == m.selected {
			marker = "(•)"
		}

		line := fmt.Sprintf("%s%s %s", cursor, marker, name)
		switch {
		case i == m.cursor:
			b.WriteString(listSelectedStyle.Render(line))
		case i == m.selected:
			b.WriteString(StyleValue.Render(line))
		default:
			b.WriteString(listDimStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  scale-z  %s\n", StyleHighlight.Render(fmt.Sprintf("%.2f", m.scaleZ))))
	b.WriteString("  preview  " + StyleValue.Render(m.previewPath) + "\n")

	if m.status != "" {
		b.WriteString("\n")
		source := iconFresh
		if m.lastCached {
			source = iconCached
		}
		b.WriteString("  " + listDimStyle.Render(m.status+" · "+source) + "\n")
	}

	return b.String()
}
