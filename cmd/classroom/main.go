package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/boristopalov/classroom/internal/store"
	"github.com/boristopalov/classroom/pkg/config"
	"github.com/boristopalov/classroom/pkg/environment"
	"github.com/boristopalov/classroom/pkg/experiment"
	"github.com/boristopalov/classroom/pkg/history"
	"github.com/boristopalov/classroom/pkg/messaging"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "classroom",
		Short: "Classroom simulates students and a teacher trading off rest, work and grading over a school term.",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a classroom simulation",
		RunE:  runExperiment,
	}
	flags := runCmd.Flags()
	flags.String("config", "", "YAML experiment config")
	flags.Int("students", 0, "number of students")
	flags.Int("steps", 0, "number of days to simulate")
	flags.Int("every", 0, "issue an assignment every N days")
	flags.Uint64("seed", 0, "random seed")
	flags.String("student-policy", "", "random|work|rest|llm")
	flags.String("teacher-policy", "", "random|grade|rest|llm")
	flags.String("db", "", "SQLite database to record the run in")
	flags.String("csv", "", "prefix for the student and teacher CSV exports")
	flags.Bool("verbose", false, "log a summary of every day")

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "List recorded runs, or the days of one run",
		RunE:  inspect,
	}
	inspectCmd.Flags().String("db", "classroom.db", "SQLite database to read")
	inspectCmd.Flags().String("run", "", "run ID to show")

	for _, envFile := range []string{
		".env",
		"../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd.AddCommand(runCmd, inspectCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file if one is given and applies any flags
// the user set on top of it.
func loadConfig(cmd *cobra.Command) (*config.ExperimentConfig, error) {
	flags := cmd.Flags()
	cfg := config.Default()
	if path, _ := flags.GetString("config"); path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if flags.Changed("students") {
		cfg.Students, _ = flags.GetInt("students")
	}
	if flags.Changed("steps") {
		cfg.Steps, _ = flags.GetInt("steps")
	}
	if flags.Changed("every") {
		cfg.AssignmentEvery, _ = flags.GetInt("every")
	}
	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("student-policy") {
		cfg.StudentPolicy.Type, _ = flags.GetString("student-policy")
	}
	if flags.Changed("teacher-policy") {
		cfg.TeacherPolicy.Type, _ = flags.GetString("teacher-policy")
	}
	if flags.Changed("db") {
		cfg.Output.DB, _ = flags.GetString("db")
	}
	if flags.Changed("csv") {
		cfg.Output.CSV, _ = flags.GetString("csv")
	}
	if flags.Changed("verbose") {
		cfg.Logging.Verbose, _ = flags.GetBool("verbose")
	}
	return cfg, cfg.Validate()
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	classroom, err := environment.NewClassroom(cfg.Students, cfg.AssignmentEvery,
		environment.WithSeed(cfg.Seed),
		environment.WithCompetencies(cfg.Competencies),
	)
	if err != nil {
		return err
	}

	students, teacher, err := buildPolicies(ctx, cfg)
	if err != nil {
		return err
	}

	broker := messaging.NewBroker[history.Snapshot]()
	defer broker.Reset()
	opts := []experiment.ExperimentOption{experiment.WithBroker(broker)}

	if cfg.Output.DB != "" {
		db, err := store.NewStore(cfg.Output.DB)
		if err != nil {
			return err
		}
		defer db.Close()

		runID, err := db.CreateRun(cfg.Name, cfg.Seed, cfg.Students, cfg.AssignmentEvery)
		if err != nil {
			return err
		}
		log.Printf("Recording run %s to %s", runID, cfg.Output.DB)
		opts = append(opts, experiment.WithRunID(runID), experiment.WithRecorder(db))
	}

	exp, err := experiment.NewExperiment(cfg, classroom, students, teacher, opts...)
	if err != nil {
		return err
	}

	progress := make(chan messaging.Message[history.Snapshot], cfg.Steps+1)
	if err := broker.Subscribe("cli", progress, messaging.TopicSnapshots); err != nil {
		return err
	}

	runErr := exp.Run(ctx)
	close(progress)
	if !cfg.Logging.Verbose {
		var last *history.Snapshot
		for msg := range progress {
			last = &msg.Content
		}
		if last != nil {
			log.Println(history.Summary(*last))
		}
	}
	if runErr != nil {
		return fmt.Errorf("experiment failed: %w", runErr)
	}

	if cfg.Output.CSV != "" {
		if err := writeCSV(cfg.Output.CSV, exp.Log()); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(prefix string, l *history.Log) error {
	for suffix, write := range map[string]func(*os.File) error{
		"_students.csv": func(f *os.File) error { return l.WriteStudentCSV(f) },
		"_teacher.csv":  func(f *os.File) error { return l.WriteTeacherCSV(f) },
	} {
		f, err := os.Create(prefix + suffix)
		if err != nil {
			return err
		}
		if err := write(f); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", f.Name(), err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Printf("Wrote %s", f.Name())
	}
	return nil
}

func inspect(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("db")
	runID, _ := cmd.Flags().GetString("run")

	// opening runs migrations, which would create a missing file
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no database at %s: %w", path, err)
	}
	db, err := store.NewStore(path)
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if runID == "" {
		runs, err := db.ListRuns()
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Fprintf(out, "%s  %-16s seed=%d students=%d every=%d days=%d  %s\n",
				r.ID, r.Name, r.Seed, r.Students, r.AssignmentEvery, r.Days, r.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	}

	snaps, err := db.ListSnapshots(runID)
	if err != nil {
		return err
	}
	for _, s := range snaps {
		fmt.Fprintln(out, history.Summary(s))
	}
	return nil
}
