package users

// EducationOptions feeds the registration form dropdowns.
type EducationOptions struct {
	EducationLevels []string            `json:"education_levels"`
	Campuses        []string            `json:"campuses"`
	Faculties       []string            `json:"faculties"`
	Majors          map[string][]string `json:"majors"`
}

func DefaultEducationOptions() EducationOptions {
	return EducationOptions{
		EducationLevels: []string{"ปริญญาตรี", "ปริญญาโท", "ปริญญาเอก", "อนุปริญญา"},
		Campuses: []string{
			"วิทยาเขตกรุงเทพมหานคร",
			"วิทยาเขตรังสิต",
			"วิทยาเขตสารสนเทศ",
			"วิทยาเขตศิลปกรรมศาสตร์",
		},
		Faculties: []string{
			"คณะวิศวกรรมศาสตร์",
			"คณะแพทยศาสตร์",
			"คณะเศรษฐศาสตร์",
			"คณะบริหารธุรกิจ",
			"คณะวิทยาศาสตร์",
			"คณะนิติศาสตร์",
			"คณะสถาปัตยกรรมศาสตร์",
			"คณะศิลปกรรมศาสตร์",
		},
		Majors: map[string][]string{
			"คณะวิศวกรรมศาสตร์": {"วิศวกรรมคอมพิวเตอร์", "วิศวกรรมไฟฟ้า", "วิศวกรรมเครื่องกล", "วิศวกรรมโยธา"},
			"คณะแพทยศาสตร์":     {"แพทยศาสตร์", "พยาบาลศาสตร์", "เทคนิคการแพทย์"},
			"คณะเศรษฐศาสตร์":    {"เศรษฐศาสตร์", "เศรษฐศาสตร์ธุรกิจ"},
			"คณะบริหารธุรกิจ":   {"บริหารธุรกิจ", "การบัญชี", "การตลาด"},
		},
	}
}
