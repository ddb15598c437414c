package validators

import "go.mongodb.org/mongo-driver/bson"

var SettingsValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"enum": []string{"calendar_config", "site_config"},
			},

			"blocked": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "string",
					"pattern":  `^\d{4}-\d{2}-\d{2}$`,
				},
			},

			"limits": bson.M{
				"bsonType": "object",
				"additionalProperties": bson.M{
					"bsonType": []string{"int", "long"},
					"minimum":  1,
				},
			},

			"maintenance_mode": bson.M{"bsonType": "bool"},
			"show_popup":       bson.M{"bsonType": "bool"},

			"popup_message": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
			},

			"popup_image_url": bson.M{
				"bsonType":  "string",
				"maxLength": 2048,
			},

			"updated_at": bson.M{"bsonType": "date"},
			"updated_by": bson.M{"bsonType": "string"},
		},
	},
}
