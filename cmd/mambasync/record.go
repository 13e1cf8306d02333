package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MaximoMartin/mambapp-sync/internal/record"
	"github.com/MaximoMartin/mambapp-sync/internal/store"
)

var addFlags struct {
	registrationNumber int64
	performedDate      string
	submittedDate      string
	paidDate           string
	patientID          int64
	doctorID           int64
	technicianID       int64
	placeID            int64
	pathologyID        int64
	requesterID        int64
	equipmentID        int64
	anesthesiaDetail   string
	complicationDetail string
	motorChangeNote    string
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Capture a new monitoring record",
	Long: `Capture a new monitoring record in the local store.

The record id is assigned automatically. Doctor, technician and requester
snapshot labels are resolved from the reference tables at save time so
the spreadsheet view stays readable.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st, err := openStore(ctx)
		if err != nil {
			fatalf("opening store: %v", err)
		}
		defer st.Close()

		id, err := st.NextMonitoringID(ctx)
		if err != nil {
			fatalf("assigning record id: %v", err)
		}

		m := &record.Monitoring{
			ID:                 id,
			RegistrationNumber: addFlags.registrationNumber,
			PerformedDate:      addFlags.performedDate,
			SubmittedDate:      addFlags.submittedDate,
			PaidDate:           addFlags.paidDate,
			PatientID:          addFlags.patientID,
			DoctorID:           addFlags.doctorID,
			TechnicianID:       addFlags.technicianID,
			PlaceID:            addFlags.placeID,
			PathologyID:        addFlags.pathologyID,
			RequesterID:        addFlags.requesterID,
			AnesthesiaDetail:   addFlags.anesthesiaDetail,
			ComplicationDetail: addFlags.complicationDetail,
			MotorChangeNote:    addFlags.motorChangeNote,
			HadComplication:    addFlags.complicationDetail != "",
		}
		if addFlags.equipmentID > 0 {
			m.EquipmentID = &addFlags.equipmentID
		}

		if err := st.ResolveSnapshots(ctx, m); err != nil {
			fatalf("resolving snapshots: %v", err)
		}
		if err := st.UpsertMonitoring(ctx, m); err != nil {
			fatalf("saving record: %v", err)
		}

		fmt.Printf("Monitoring record %d saved\n", id)
	},
}

var refCmd = &cobra.Command{
	Use:   "ref",
	Short: "Manage reference entities",
	Long: `Manage the reference-entity collections (patients, doctors,
technicians, places, pathologies, requesters, equipments) that monitoring
records point to.`,
}

var refAddCmd = &cobra.Command{
	Use:   "add <kind> <id> <name>",
	Short: "Add or update a reference entity",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fatalf("invalid id %q", args[1])
		}

		st, err := openStore(ctx)
		if err != nil {
			fatalf("opening store: %v", err)
		}
		defer st.Close()

		kind := store.ReferenceKind(args[0])
		if err := st.PutReference(ctx, kind, &store.Reference{ID: id, Name: args[2]}); err != nil {
			fatalf("saving %s: %v", kind, err)
		}

		fmt.Printf("%s %d saved\n", kind, id)
	},
}

var refListCmd = &cobra.Command{
	Use:   "list <kind>",
	Short: "List reference entities of a kind",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st, err := openStore(ctx)
		if err != nil {
			fatalf("opening store: %v", err)
		}
		defer st.Close()

		refs, err := st.ListReferences(ctx, store.ReferenceKind(args[0]))
		if err != nil {
			fatalf("listing %s: %v", args[0], err)
		}

		for _, ref := range refs {
			fmt.Printf("%6d  %s\n", ref.ID, ref.Name)
		}
	},
}

func init() {
	addCmd.Flags().Int64Var(&addFlags.registrationNumber, "registration", 0, "registration number")
	addCmd.Flags().StringVar(&addFlags.performedDate, "performed", "", "performed date (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&addFlags.submittedDate, "submitted", "", "submitted date (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&addFlags.paidDate, "paid", "", "paid date (YYYY-MM-DD)")
	addCmd.Flags().Int64Var(&addFlags.patientID, "patient", 0, "patient id")
	addCmd.Flags().Int64Var(&addFlags.doctorID, "doctor", 0, "doctor id")
	addCmd.Flags().Int64Var(&addFlags.technicianID, "technician", 0, "technician id")
	addCmd.Flags().Int64Var(&addFlags.placeID, "place", 0, "place id")
	addCmd.Flags().Int64Var(&addFlags.pathologyID, "pathology", 0, "pathology id")
	addCmd.Flags().Int64Var(&addFlags.requesterID, "requester", 0, "requester id")
	addCmd.Flags().Int64Var(&addFlags.equipmentID, "equipment", 0, "equipment id (optional)")
	addCmd.Flags().StringVar(&addFlags.anesthesiaDetail, "anesthesia", "", "anesthesia detail")
	addCmd.Flags().StringVar(&addFlags.complicationDetail, "complication", "", "complication detail, if any")
	addCmd.Flags().StringVar(&addFlags.motorChangeNote, "motor-change", "", "motor change note")
	_ = addCmd.MarkFlagRequired("performed")
	_ = addCmd.MarkFlagRequired("patient")
	_ = addCmd.MarkFlagRequired("doctor")
	_ = addCmd.MarkFlagRequired("technician")

	refCmd.AddCommand(refAddCmd)
	refCmd.AddCommand(refListCmd)

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(refCmd)
}
