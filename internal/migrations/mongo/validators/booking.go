package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"token_number",
			"name",
			"mobile",
			"city",
			"day_label",
			"date_code",
			"owner_ref",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"token_number": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"mobile": bson.M{
				"bsonType": "string",
				"pattern":  `^\+[1-9]\d{6,14}$`,
			},

			"city": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"day_label": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 50,
			},

			// Empty for bookings made before dates were recorded.
			"date_code": bson.M{
				"bsonType": "string",
				"pattern":  `^(\d{4}-\d{2}-\d{2})?$`,
			},

			"owner_ref": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},

			"request_key": bson.M{
				"bsonType":  "string",
				"maxLength": 128,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
