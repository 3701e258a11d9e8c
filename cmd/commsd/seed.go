package main

import (
	"encoding/json"
	"fmt"

	"github.com/coder/quartz"
	"github.com/coder/serpent"

	"github.com/commsd/commsd/comms/definition"
	"github.com/commsd/commsd/comms/template"
)

// Seed data for a working "parcel.arrival" communication across all three
// channels, including a shared email layout the html template extends.
var seedTemplates = []template.Template{
	{
		Name:    "layout",
		Channel: "email",
		Content: `<html><body><header>{{block "header" .}}Parcel updates{{end}}</header>
<main>{{block "content" .}}{{end}}</main>
<footer>You receive this because you asked for delivery updates.</footer></body></html>`,
		ContentType: template.ContentTypeHTML,
	},
	{
		Name:    "parcel_arrival",
		Channel: "email",
		Subject: "Your parcel {{ .parcelId }} has arrived",
		Content: `{{extends "layout"}}
{{define "content"}}<p>Hello {{ .name }},</p>
<p>Parcel <strong>{{ .parcelId }}</strong> arrived at {{ .location }} and is ready for pickup.</p>{{end}}`,
		ContentType: template.ContentTypeHTML,
	},
	{
		Name:        "parcel_arrival.text",
		Channel:     "sms",
		Content:     `Parcel {{ .parcelId }} arrived at {{ .location }}. Ready for pickup.`,
		ContentType: "text/plain",
	},
	{
		Name:        "parcel_arrival.text",
		Channel:     "mobile",
		Content:     `Parcel {{ .parcelId }} arrived at {{ .location }}.`,
		ContentType: "text/plain",
	},
}

var (
	parcelContextSchema = json.RawMessage(`{
		"type": "object",
		"required": ["parcelId", "location"],
		"properties": {
			"parcelId": {"type": "string"},
			"location": {"type": "string"},
			"name": {"type": "string"}
		}
	}`)
	parcelSubjectSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"subject": {"type": "string"}
		}
	}`)
)

func seedDefinition() *definition.CommunicationDefinition {
	def := definition.NewCommunicationDefinition("parcel.arrival", "Parcel arrival")
	def.AddChannelDefinition(definition.NewEmailChannelDefinition(
		"parcel_arrival", parcelContextSchema, parcelSubjectSchema,
		"noreply@parcels.example.com", "support@parcels.example.com",
	))
	def.AddChannelDefinition(definition.NewSMSChannelDefinition(
		"parcel_arrival.text:sms", parcelContextSchema, parcelSubjectSchema, "PARCELS",
	))
	def.AddChannelDefinition(definition.NewMobileChannelDefinition(
		"parcel_arrival.text:mobile", parcelContextSchema, parcelSubjectSchema, 1, false,
	))
	return def
}

func seedCommand(cfg *rootConfig) *serpent.Command {
	return &serpent.Command{
		Use:   "seed",
		Short: "Load the example parcel.arrival definition and its templates.",
		Handler: func(inv *serpent.Invocation) error {
			ctx := inv.Context()
			db, err := cfg.connect(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			templates := template.NewPostgresStore(db, quartz.NewReal())
			for _, tmpl := range seedTemplates {
				saved, err := templates.Save(ctx, tmpl)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(inv.Stdout, "template %s:%s (%s)\n", saved.Name, saved.Channel, saved.ID)
			}

			defs := definition.NewStore(db, cfg.logger(inv).Named("definitions"))
			def := seedDefinition()
			if err := defs.Save(ctx, def); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(inv.Stdout, "definition %s with %d channels\n", def.Identifier, len(def.ChannelDefinitions()))
			return nil
		},
	}
}
