package models

// All lists every model the schema migration manages, in dependency order.
func All() []interface{} {
	return []interface{}{&User{}, &Group{}, &Post{}, &Comment{}, &Follow{}, &PageView{}, &UploadedFile{}}
}
