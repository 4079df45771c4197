package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"scrapforge/internal/app"
	"scrapforge/internal/config"
	"scrapforge/internal/db"
	"scrapforge/internal/domain"
	"scrapforge/internal/engine"
	"scrapforge/internal/repo"
	"scrapforge/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "Scrapforge CLI",
	Long: `Scrapforge turns discarded equipment into tracked fabrication projects.
The flow:
- Scan: point it at a photo of junk; the appraiser backend breaks the machine
  into salvageable components with hazards and values.
- Blueprint: state what you want to build; the round table (foreman, engineer,
  contractor) deliberates and produces a three-tier build plan with a parts
  manifest and safety notes.
- Project: turn a blueprint into a tracked build that moves through the phase
  lifecycle declared in scrapforge.yml. Safety gates block a phase advance
  until their tasks are complete and the gates are confirmed.
- Tasks, parts and notes live on the project; 'forge log tail' shows the
  event diary.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SCRAPFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("workshop", "", "workshop id (used by init and default config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("workshop", rootCmd.PersistentFlags().Lookup("workshop"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(blueprintCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(partCmd())
	rootCmd.AddCommand(noteCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default scrapforge.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			workshopID := viper.GetString("workshop")
			if workshopID == "" {
				workshopID = "workshop"
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(workshopID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	return cmd
}

func scanCmd() *cobra.Command {
	scan := &cobra.Command{
		Use:   "scan",
		Short: "Scan equipment photos",
		Long:  "Scans feed a photo to the appraiser backend and store the structured teardown: components, conditions, salvage values and hazards.",
	}
	scan.AddCommand(scanAddCmd())
	scan.AddCommand(scanListCmd())
	scan.AddCommand(scanShowCmd())
	return scan
}

func scanAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <image-file>",
		Short: "Scan an equipment photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Scan(ctx, image, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("Scan %s\n", s.ID)
				fmt.Printf("Equipment: %s (%s %s, %s)\n", s.Teardown.Equipment, s.Teardown.Manufacturer, s.Teardown.Model, s.Teardown.Era)
				fmt.Printf("Hazards: %s\n", s.Teardown.Hazards.Level)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Component", "Location", "Condition", "Reuse", "Value"})
				for _, c := range s.Teardown.Components {
					tw.AppendRow(table.Row{c.Name, c.Location, c.Condition, c.ReusePotential, c.SalvageValue})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func scanListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListScans(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Equipment", "Components", "Value", "Created"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.Teardown.Equipment, len(s.Teardown.Components), s.Teardown.TotalValue, s.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "n", 20, "number of scans")
	return cmd
}

func scanShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Repo.GetScan(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(s)
			})
		},
	}
	return cmd
}

func blueprintCmd() *cobra.Command {
	bp := &cobra.Command{
		Use:   "blueprint",
		Short: "Forge and inspect blueprints",
		Long:  "Blueprints are the round table's output: novice, journeyman and master build plans with a parts manifest, safety warnings and per-stage provenance.",
	}
	bp.AddCommand(blueprintForgeCmd())
	bp.AddCommand(blueprintListCmd())
	bp.AddCommand(blueprintShowCmd())
	return bp
}

func blueprintForgeCmd() *cobra.Command {
	var opts engine.ForgeOptions
	cmd := &cobra.Command{
		Use:   "forge",
		Short: "Run the round table",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.ForgeBlueprint(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(b)
				}
				fmt.Printf("Blueprint %s (difficulty %d, ~%.1fh, ~$%.2f)\n", b.ID, b.Difficulty, b.EstHours, b.EstCost)
				for _, st := range b.Provenance {
					status := "ok"
					if st.Degraded {
						status = "degraded"
					}
					fmt.Printf("  %s (%s): %s\n", st.Stage, st.Backend, status)
				}
				fmt.Println()
				fmt.Println(b.Journeyman)
				if len(b.Safety) > 0 {
					fmt.Println("\nSafety:")
					for _, w := range b.Safety {
						fmt.Printf("  - %s\n", w)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Problem, "problem", "", "what to build")
	cmd.Flags().StringVar(&opts.ProjectType, "type", "", "project type")
	cmd.Flags().StringVar(&opts.ScanID, "scan", "", "scan id to build from")
	cmd.Flags().StringVar(&opts.DetailLevel, "detail", "", "detail level (full, novice, master)")
	_ = cmd.MarkFlagRequired("problem")
	return cmd
}

func blueprintListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List blueprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListBlueprints(ctx, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Problem", "Type", "Difficulty", "Created"})
				for _, b := range items {
					tw.AppendRow(table.Row{b.ID, b.Problem, b.ProjectType, b.Difficulty, b.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "n", 20, "number of blueprints")
	return cmd
}

func blueprintShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a blueprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.Repo.GetBlueprint(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(b)
			})
		},
	}
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
		Long:  "Projects track a build through the configured phase lifecycle. Advancing requires all safety tasks of the current phase complete and its gates confirmed with --confirm-gate.",
	}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectAdvanceCmd())
	prj.AddCommand(projectArchiveCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrIndent(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.BlueprintID, "blueprint", "", "blueprint id to build from")
	cmd.Flags().StringVar(&opts.Title, "title", "", "project title")
	cmd.Flags().StringVar(&opts.ProjectType, "type", "", "project type")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	return cmd
}

func projectListCmd() *cobra.Command {
	var f repo.ProjectFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListProjects(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Phase", "Status", "Difficulty"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Title, p.Phase, p.Status, p.Difficulty})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter (active, archived)")
	cmd.Flags().StringVar(&f.Phase, "phase", "", "phase filter")
	cmd.Flags().IntVar(&f.Limit, "n", 50, "number of projects")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show project detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.GetProjectDetail(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d)
				}
				p := d.Project
				fmt.Printf("%s - %s [%s, %s] %.0f%% done\n", p.ID, p.Title, p.Phase, p.Status, d.Progress*100)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Task", "Phase", "Safety", "Done"})
				for _, t := range d.Tasks {
					tw.AppendRow(table.Row{t.Title, t.Phase, t.Safety, t.Complete})
				}
				tw.Render()
				fmt.Printf("Parts: %d needed, %d sourced, %d installed ($%.2f)\n",
					d.Summary.Needed, d.Summary.Sourced, d.Summary.Installed, d.Summary.TotalValue)
				return nil
			})
		},
	}
	return cmd
}

func projectAdvanceCmd() *cobra.Command {
	var gates []string
	cmd := &cobra.Command{
		Use:   "advance <id>",
		Short: "Advance project to the next phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.AdvancePhase(ctx, args[0], gates, viper.GetString("actor-id"))
				if err != nil {
					var gateErr *engine.SafetyGateError
					if errors.As(err, &gateErr) && !viper.GetBool("json") {
						fmt.Printf("Blocked in phase %s.\n", gateErr.Phase)
						for _, t := range gateErr.IncompleteTasks {
							fmt.Printf("  incomplete: %s\n", t)
						}
						for _, g := range gateErr.MissingGates {
							fmt.Printf("  confirm with --confirm-gate %s\n", g)
						}
					}
					return err
				}
				return printJSONOrIndent(p)
			})
		},
	}
	cmd.Flags().StringArrayVar(&gates, "confirm-gate", []string{}, "confirm a safety gate (repeatable)")
	return cmd
}

func projectArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.ArchiveProject(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrIndent(p)
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage project tasks"}
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskToggleCmd())
	task.AddCommand(taskListCmd())
	return task
}

func taskAddCmd() *cobra.Command {
	var opts engine.TaskAddOptions
	cmd := &cobra.Command{
		Use:   "add <project-id>",
		Short: "Add a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProjectID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.AddTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrIndent(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "task title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Phase, "phase", "", "phase (defaults to current)")
	cmd.Flags().BoolVar(&opts.Safety, "safety", false, "mark as safety task")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskToggleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle <task-id>",
		Short: "Toggle task completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.ToggleTask(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrIndent(t)
			})
		},
	}
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.ProjectID = args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.Repo.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Phase", "Safety", "Done"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Phase, t.Safety, t.Complete})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Phase, "phase", "", "phase filter")
	return cmd
}

func partCmd() *cobra.Command {
	part := &cobra.Command{Use: "part", Short: "Manage project parts"}
	part.AddCommand(partAddCmd())
	part.AddCommand(partStatusCmd())
	part.AddCommand(partListCmd())
	return part
}

func partAddCmd() *cobra.Command {
	var opts engine.PartAddOptions
	cmd := &cobra.Command{
		Use:   "add <project-id>",
		Short: "Add a part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProjectID = args[0]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.AddPart(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrIndent(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "part name")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category")
	cmd.Flags().StringVar(&opts.Source, "source", "", "source (salvage, buy, ...)")
	cmd.Flags().IntVar(&opts.Quantity, "quantity", 1, "quantity")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status (needed, sourced, installed)")
	cmd.Flags().Float64Var(&opts.EstValue, "value", 0, "estimated value")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func partStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status <part-id>",
		Short: "Set part status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.SetPartStatus(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrIndent(p)
			})
		},
	}
	cmd.Flags().StringVar(&status, "set", "", "new status (needed, sourced, installed)")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

func partListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List parts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				parts, err := e.Repo.ListParts(ctx, args[0], status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(parts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Qty", "Status", "Value"})
				for _, p := range parts {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Quantity, p.Status, p.EstValue})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func noteCmd() *cobra.Command {
	note := &cobra.Command{Use: "note", Short: "Manage the shop log"}
	note.AddCommand(noteAddCmd())
	note.AddCommand(noteListCmd())
	return note
}

func noteAddCmd() *cobra.Command {
	var opts engine.NoteAddOptions
	cmd := &cobra.Command{
		Use:   "add <project-id> <content>",
		Short: "Add a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProjectID = args[0]
			opts.Content = args[1]
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.AddNote(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrIndent(n)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Type, "type", "", "note type (general, observation, safety_warning, tools)")
	return cmd
}

func noteListCmd() *cobra.Command {
	var phase, noteType string
	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				notes, err := e.Repo.ListNotes(ctx, args[0], phase, noteType)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(notes)
				}
				for _, n := range notes {
					fmt.Printf("[%s] (%s/%s) %s\n", n.CreatedAt, n.Phase, n.Type, n.Content)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&phase, "phase", "", "phase filter")
	cmd.Flags().StringVar(&noteType, "type", "", "type filter")
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Workshop stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stats, err := e.WorkshopStats(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(stats)
				}
				fmt.Printf("Projects: %d active, %d archived\n", stats.ActiveProjects, stats.ArchivedProjects)
				for phase, n := range stats.ByPhase {
					fmt.Printf("  %s: %d\n", phase, n)
				}
				fmt.Printf("Tasks: %d/%d complete\n", stats.TasksComplete, stats.TasksTotal)
				fmt.Printf("Parts: %d needed, %d sourced, %d installed ($%.2f)\n",
					stats.Parts.Needed, stats.Parts.Sourced, stats.Parts.Installed, stats.Parts.TotalValue)
				fmt.Printf("Estimated cost of active projects: $%.2f\n", stats.EstCostTotal)
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var projectID, evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.LatestEvents(ctx, n, projectID, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				for _, ev := range items {
					fmt.Printf("[%s] %s %s/%s by %s\n", ev.TS, ev.Type, ev.EntityKind, ev.EntityID, ev.ActorID)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&projectID, "project", "", "project filter")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
		Long:  "API keys authenticate X-Api-Key callers of the HTTP API. Only the SHA-256 hash is stored; the plaintext is printed once at creation.",
	}
	key.AddCommand(apikeyCreateCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyDeleteCmd())
	return key
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				raw := make([]byte, 24)
				if _, err := rand.Read(raw); err != nil {
					return err
				}
				plaintext := "sfk_" + hex.EncodeToString(raw)
				key := domain.APIKey{
					ID:        uuid.New().String(),
					ActorID:   viper.GetString("actor-id"),
					Name:      name,
					KeyHash:   repo.HashAPIKey(plaintext),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "key": plaintext})
				}
				fmt.Printf("Created key %s for %s\n", key.ID, key.ActorID)
				fmt.Printf("Plaintext (shown once): %s\n", plaintext)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key name")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.Repo.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor filter")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show resolved config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.ResolveConfig(viper.GetString("workspace"), viper.GetString("workshop"))
			if err != nil {
				return err
			}
			return printJSONOrIndent(c)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate scrapforge.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	return cfg
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacy bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, e, err := app.Open(viper.GetString("workspace"), viper.GetString("workshop"))
			if err != nil {
				return err
			}
			defer conn.Close()
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("SCRAPFORGE_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacy,
			}
			if authCfg.JWTSecret == "" && !allowLegacy {
				return fmt.Errorf("SCRAPFORGE_JWT_SECRET is required for bearer auth (or pass --allow-legacy-actor for local use)")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Scrapforge API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().BoolVar(&allowLegacy, "allow-legacy-actor", false, "accept X-Actor-Id without auth (local only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	conn, e, err := app.Open(viper.GetString("workspace"), viper.GetString("workshop"))
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
}

func printJSONOrIndent(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
